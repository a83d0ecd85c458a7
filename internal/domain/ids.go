package domain

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

const (
	roomIDAlphabet = "0123456789abcdef"
	roomIDLength   = 16
)

// IDGenerator produces opaque identifiers.
type IDGenerator func() (string, error)

// NewRoomIDGenerator returns a generator of short hex room ids.
func NewRoomIDGenerator() (IDGenerator, error) {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to build room id generator: %w", err)
	}
	return func() (string, error) {
		return gen(), nil
	}, nil
}

// NewItemIDGenerator returns a generator for message and transcript ids.
func NewItemIDGenerator() IDGenerator {
	return func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
}
