package session

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/saiset-co/sai-feed/types"
)

const (
	saltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealer encrypts the session file with a key derived from a passphrase.
// Layout: salt | nonce | ciphertext.
type sealer struct {
	secret []byte
}

func newSealer(secret string) *sealer {
	if secret == "" {
		return nil
	}
	return &sealer{secret: []byte(secret)}
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize, saltSize+chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return nil, types.WrapError(err, "failed to generate salt")
	}

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, types.WrapError(err, "failed to create cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, types.WrapError(err, "failed to generate nonce")
	}

	out := append(salt, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	if len(data) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, types.Errorf(types.ErrSessionUnreadable, "sealed session too short")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := data[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, types.WrapError(err, "failed to create cipher")
	}

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, types.Errorf(types.ErrSessionUnreadable, "wrong secret or tampered file")
	}
	return plain, nil
}

func (s *sealer) key(salt []byte) []byte {
	return argon2.IDKey(s.secret, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
