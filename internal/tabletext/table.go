// Package tabletext locates and edits pipe-delimited table blocks embedded
// in plain-text note content. Blocks are derived state: they are recomputed
// from the content string and cursor offset on every relevant keystroke and
// never persisted on their own.
package tabletext

import (
	"regexp"
	"strings"
)

var (
	rowPattern       = regexp.MustCompile(`^\|.*\|$`)
	separatorPattern = regexp.MustCompile(`^\|[\s\-:|]*\|$`)
)

// Block is a contiguous run of pipe-delimited lines recognized as one
// editable table. Rows holds the cell grid with the header row first; the
// separator row is recognized structurally but excluded.
type Block struct {
	StartLine int
	EndLine   int
	Rows      [][]string
}

// DetectTableAt returns the maximal table block whose line span contains
// the cursor offset, or nil when the cursor's line is not itself a table
// row.
func DetectTableAt(content string, cursorOffset int) *Block {
	lines := strings.Split(content, "\n")
	cursorLine := lineIndexAt(content, cursorOffset)
	if cursorLine < 0 || cursorLine >= len(lines) {
		return nil
	}
	if !isTableRow(lines[cursorLine]) {
		return nil
	}

	startLine := cursorLine
	for startLine > 0 && isTableRow(lines[startLine-1]) {
		startLine--
	}
	endLine := cursorLine
	for endLine < len(lines)-1 && isTableRow(lines[endLine+1]) {
		endLine++
	}

	var rows [][]string
	maxColumns := 0
	for i := startLine; i <= endLine; i++ {
		if isSeparatorRow(lines[i]) {
			continue
		}
		cells := splitCells(lines[i])
		if len(cells) > maxColumns {
			maxColumns = len(cells)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		for len(rows[i]) < maxColumns {
			rows[i] = append(rows[i], "")
		}
	}

	return &Block{StartLine: startLine, EndLine: endLine, Rows: rows}
}

// AddRow appends an all-empty row after the last row.
func (b *Block) AddRow() {
	if len(b.Rows) == 0 {
		return
	}
	b.Rows = append(b.Rows, make([]string, len(b.Rows[0])))
}

// DeleteRow removes the row at index. The last remaining row cannot be
// deleted; the call reports whether a row was removed.
func (b *Block) DeleteRow(index int) bool {
	if len(b.Rows) <= 1 || index < 0 || index >= len(b.Rows) {
		return false
	}
	b.Rows = append(b.Rows[:index], b.Rows[index+1:]...)
	return true
}

// AddColumn appends one empty cell to every row.
func (b *Block) AddColumn() {
	for i := range b.Rows {
		b.Rows[i] = append(b.Rows[i], "")
	}
}

// DeleteColumn removes the column at index from every row. The last
// remaining column cannot be deleted; the call reports whether a column was
// removed.
func (b *Block) DeleteColumn(index int) bool {
	if len(b.Rows) == 0 || len(b.Rows[0]) <= 1 || index < 0 || index >= len(b.Rows[0]) {
		return false
	}
	for i := range b.Rows {
		b.Rows[i] = append(b.Rows[i][:index], b.Rows[i][index+1:]...)
	}
	return true
}

// SetCell replaces one cell's text.
func (b *Block) SetCell(row, column int, text string) bool {
	if row < 0 || row >= len(b.Rows) {
		return false
	}
	if column < 0 || column >= len(b.Rows[row]) {
		return false
	}
	b.Rows[row][column] = text
	return true
}

// Serialize renders the block back to markdown table text: the header row,
// a regenerated separator, then the body rows.
func (b *Block) Serialize() string {
	if len(b.Rows) == 0 {
		return ""
	}
	columns := len(b.Rows[0])

	var out strings.Builder
	writeRow(&out, b.Rows[0])
	out.WriteByte('\n')
	out.WriteByte('|')
	for i := 0; i < columns; i++ {
		out.WriteString("---|")
	}
	for _, row := range b.Rows[1:] {
		out.WriteByte('\n')
		writeRow(&out, row)
	}
	return out.String()
}

// Apply splices the serialized block over its original [StartLine, EndLine]
// span, leaving all surrounding text untouched.
func (b *Block) Apply(content string) string {
	lines := strings.Split(content, "\n")
	if b.StartLine < 0 || b.EndLine >= len(lines) || b.StartLine > b.EndLine {
		return content
	}

	var out []string
	out = append(out, lines[:b.StartLine]...)
	out = append(out, strings.Split(b.Serialize(), "\n")...)
	out = append(out, lines[b.EndLine+1:]...)
	return strings.Join(out, "\n")
}

func writeRow(out *strings.Builder, cells []string) {
	out.WriteByte('|')
	for _, cell := range cells {
		out.WriteByte(' ')
		out.WriteString(cell)
		out.WriteString(" |")
	}
}

func isTableRow(line string) bool {
	return rowPattern.MatchString(strings.TrimSpace(line))
}

func isSeparatorRow(line string) bool {
	return separatorPattern.MatchString(strings.TrimSpace(line))
}

// splitCells splits a row on pipes, trims each cell, and drops the empty
// leading/trailing artifacts of the outer pipes.
func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

// lineIndexAt maps a byte offset into content to its line index. Offsets at
// or past the end of content map to the last line; negative offsets are
// rejected.
func lineIndexAt(content string, offset int) int {
	if offset < 0 {
		return -1
	}
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n")
}
