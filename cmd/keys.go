package cmd

import (
	"os"

	"github.com/lupppig/dchunk/internal/crypto"
)

const passphraseEnv = "DCHUNK_PASSPHRASE"

// loadKeys builds the key manager from --key-file or DCHUNK_PASSPHRASE.
// The passphrase is only ever read from the environment. Without either,
// loadKeys returns nil unless required is set.
func loadKeys(required bool) (*crypto.KeyManager, error) {
	passphrase := os.Getenv(passphraseEnv)
	if !required && passphrase == "" && KeyFile == "" {
		return nil, nil
	}
	return crypto.NewKeyManager(passphrase, KeyFile)
}
