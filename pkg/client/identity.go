package client

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
)

// LoadAccountKey reads a hex-encoded secp256k1 private key from path.
//
//	key, err := client.LoadAccountKey(os.ExpandEnv("$HOME/.keyctl/account.key"))
func LoadAccountKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load account key %s: %w", path, err)
	}
	return key, nil
}

// GenerateAccountKey creates a new account key and saves it hex-encoded at
// path with 0600 permissions.
func GenerateAccountKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := crypto.SaveECDSA(path, key); err != nil {
		return nil, fmt.Errorf("save account key: %w", err)
	}
	return key, nil
}
