package docstore

import "io"

// Encryptor provides at-rest encryption for backends that have no
// server-side encryption of their own. Writing needs only the public key.
// Reading needs the private key, which stays sealed under a passphrase until
// Unlock is called.
type Encryptor interface {
	// Setup generates the key pair once. `docstore keys init` calls it.
	Setup(passphrase string) error

	// Encrypt streams ciphertext for r into w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material is present.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key, in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
