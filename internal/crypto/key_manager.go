package crypto

import (
	"encoding/base64"
	"errors"
	"os"
)

var (
	ErrMasterKeyNotSet  = errors.New("master key not set in environment")
	ErrInvalidMasterKey = errors.New("invalid master key: must be base64-encoded 32 bytes")
)

// KeyManager holds the single master key used to encrypt TranscriptChunk
// text at rest. The teacher's per-user data-key envelope (a data key per
// user, cached and itself encrypted under the master key) has no home here:
// transcript chunks belong to a call, not an account with its own key
// material, so the indirection is dropped and the master key encrypts
// chunk text directly.
type KeyManager struct {
	masterKey []byte
}

// NewKeyManager loads the master key from MASTER_KEY (base64, 32 bytes).
func NewKeyManager() (*KeyManager, error) {
	masterKeyB64 := os.Getenv("MASTER_KEY")
	if masterKeyB64 == "" {
		return nil, ErrMasterKeyNotSet
	}

	masterKey, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil || len(masterKey) != 32 {
		return nil, ErrInvalidMasterKey
	}

	return &KeyManager{masterKey: masterKey}, nil
}

// NewKeyManagerWithKey builds a KeyManager from an already-decoded key,
// primarily for tests.
func NewKeyManagerWithKey(key []byte) (*KeyManager, error) {
	if len(key) != 32 {
		return nil, ErrInvalidMasterKey
	}
	return &KeyManager{masterKey: key}, nil
}

// EncryptChunkText encrypts a transcript chunk's text for storage.
func (km *KeyManager) EncryptChunkText(plaintext string) (string, error) {
	return Encrypt(plaintext, km.masterKey)
}

// DecryptChunkText decrypts a stored transcript chunk's text.
func (km *KeyManager) DecryptChunkText(ciphertext string) (string, error) {
	return Decrypt(ciphertext, km.masterKey)
}
