package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewUUID returns a time-ordered (v7) UUID string.
func NewUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("failed to generate UUID: %v", err))
	}

	return id.String()
}
