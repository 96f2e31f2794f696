package crop

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Ext is the fixed extension for cropped artifacts.
const Ext = ".jpg"

// Name derives the public filename for a cropped artifact from the original
// name and a shared secret. The mapping is deterministic, so re-runs produce
// the same filename, and one way: without the secret the original name cannot
// be recovered from the crop name.
func Name(originalName, secret string) string {
	sum := sha1.Sum([]byte(strings.ToLower(originalName) + secret))
	return hex.EncodeToString(sum[:]) + Ext
}
