package testutil

import (
	"docstore/internal/docstore"
	"docstore/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() docstore.Encryptor {
	return encryption.NewTestEncryptor()
}
