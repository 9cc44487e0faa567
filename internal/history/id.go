package history

import (
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newID returns analysis_<unix millis>_<9 random base36 chars>.
func newID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, 9)
	if err != nil {
		return "", err
	}
	return "analysis_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix, nil
}
