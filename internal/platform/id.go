package platform

import (
	"github.com/google/uuid"
)

// NewID returns a random UUID string used as a primary key.
func NewID() string {
	return uuid.New().String()
}
