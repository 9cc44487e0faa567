// Package object stores uploaded plant photos. The storage key returned by
// Save is used as the analysis imageUri.
package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is the number of leading bytes inspected for MIME detection.
const SniffLen = 3072

// ErrNotImage is returned when an upload is not a supported image format.
var ErrNotImage = errors.New("upload is not a supported image")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
	"image/gif":  true,
}

// DetectImage returns the MIME type of head, or ErrNotImage.
func DetectImage(head []byte) (string, error) {
	mt := mimetype.Detect(head)
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mt.String(), ";", 2)[0]))
	if !imageTypes[base] {
		return "", fmt.Errorf("%w: %s", ErrNotImage, base)
	}
	return base, nil
}

// SniffImage reads the head of r, validates it as an image and returns a
// reader that replays the consumed bytes.
func SniffImage(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	mimeType, err := DetectImage(head)
	if err != nil {
		return nil, "", err
	}
	return io.MultiReader(bytes.NewReader(head), r), mimeType, nil
}
