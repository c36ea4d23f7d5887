package notes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives a stable content hash over a note's editable fields.
// It is used only for equality comparison: the realtime filter recognizes a
// change notification as this client's own write when the notification's
// fingerprint equals one the save pipeline recorded.
//
// Title and tags are trimmed so incidental leading/trailing whitespace does
// not change the hash. Each section is length-prefixed before hashing, so
// two different splits of the same concatenated text cannot collide.
func Fingerprint(title, content string, tags []string, isPinned, isPublished bool) string {
	flags := [2]byte{'0', '0'}
	if isPinned {
		flags[0] = '1'
	}
	if isPublished {
		flags[1] = '1'
	}

	sections := []string{
		strings.TrimSpace(title),
		JoinTags(tags),
		string(flags[:]),
		content,
	}

	var payload strings.Builder
	for _, section := range sections {
		fmt.Fprintf(&payload, "%d:%s;", len(section), section)
	}

	digest := sha256.Sum256([]byte(payload.String()))
	return hex.EncodeToString(digest[:])
}
