package extract

import (
	"fmt"
	"os"
)

// PlainExtractor reads the file as UTF-8 text.
type PlainExtractor struct{}

func (e *PlainExtractor) Extract(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return string(raw), nil
}
