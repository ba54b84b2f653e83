package utils

import (
	"encoding/hex"

	"github.com/satori/go.uuid"
)

// UniqueSuffix returns 8 random hex characters taken from a fresh V4 UUID.
func UniqueSuffix() string {
	id := uuid.NewV4()
	return hex.EncodeToString(id.Bytes()[:4])
}
