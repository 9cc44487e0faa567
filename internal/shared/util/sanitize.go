package util

import (
	"errors"
	"strings"
	"unicode"
)

// DefaultFileName is used for uploads that arrive without a name.
const DefaultFileName = "photo.jpg"

const maxFileNameLen = 96

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal patterns. An empty name becomes DefaultFileName.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if s == "" {
		return DefaultFileName, nil
	}
	if len(s) > maxFileNameLen {
		s = s[len(s)-maxFileNameLen:]
	}
	return s, nil
}
