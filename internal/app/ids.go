package app

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDFunc produces a new record identifier.
type IDFunc func() (string, error)

// NanoID returns 21-character url-safe identifiers.
func NanoID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}
