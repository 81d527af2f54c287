// Package checksum fingerprints record files for change detection.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

var bom = []byte("\xef\xbb\xbf")

// Sum returns the hex-encoded SHA-256 digest of a record's content. A leading
// UTF-8 BOM and CRLF line endings are normalized first, so re-saving a file
// with another editor does not register as a change.
func Sum(data []byte) string {
	data = bytes.TrimPrefix(data, bom)
	if bytes.Contains(data, []byte("\r\n")) {
		data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
