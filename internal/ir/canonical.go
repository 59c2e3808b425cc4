package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// DedupKey computes the run-wide deduplication key for a report entry
// produced by the given unit.
//
// The key is a SHA-256 over the unit identity and the NFC-normalized
// message text. NFC normalization ensures that messages which render
// identically (but differ in Unicode composition) collapse to a single
// report entry, keeping the key stable across document authors and
// editors.
//
// The severity and link are deliberately excluded: two firings that
// disagree only on the link are still the same message to a reader.
func DedupKey(id UnitID, message string) string {
	h := sha256.New()
	h.Write([]byte(id.Namespace))
	h.Write([]byte{0})
	h.Write([]byte(id.Name))
	h.Write([]byte{0})
	h.Write([]byte(id.Kind))
	h.Write([]byte{0})
	h.Write(norm.NFC.Bytes([]byte(message)))
	return hex.EncodeToString(h.Sum(nil))
}
