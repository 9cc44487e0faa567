package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SharedNamespace is used for uploads without a client identifier.
const SharedNamespace = "shared"

// NamespaceKey returns a filesystem-safe directory name for a client namespace.
func NamespaceKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return SharedNamespace
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
