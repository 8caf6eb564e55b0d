// Package cryptox implements the password-based encryption used for memory
// records, attached files and backup bundles.
//
// Every call derives a fresh key from a random salt and seals with AES-256-GCM
// under a random nonce, so encrypting the same input twice never yields the
// same envelope. GCM authentication makes a wrong password or a damaged
// envelope fail with common.ErrDecryption instead of returning garbage.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// Seal encrypts plaintext with a key derived from password.
func Seal(plaintext []byte, password string, level models.EncryptionLevel) (*models.Envelope, error) {
	if password == "" {
		return nil, common.ErrMissingKey
	}

	alg := AlgorithmFor(level)
	params := defaultParams(alg)

	salt := common.GenerateRandByteArray(SaltLength)
	nonce := common.GenerateRandByteArray(NonceSize)

	key, err := DeriveKey([]byte(password), salt, alg, params)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return &models.Envelope{
		Algorithm:  alg,
		KDF:        params,
		Salt:       salt,
		IV:         nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(alg)),
	}, nil
}

// Open reverses Seal. Every failure, including a wrong password, wraps
// common.ErrDecryption.
func Open(env *models.Envelope, password string) ([]byte, error) {
	if password == "" {
		return nil, common.ErrMissingKey
	}
	if env == nil {
		return nil, fmt.Errorf("%w: no envelope", common.ErrDecryption)
	}
	if len(env.Salt) == 0 || len(env.IV) != NonceSize || len(env.Ciphertext) < 16 {
		return nil, fmt.Errorf("%w: malformed envelope", common.ErrDecryption)
	}

	key, err := DeriveKey([]byte(password), env.Salt, env.Algorithm, env.KDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	defer common.WipeByteArray(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, env.IV, env.Ciphertext, []byte(env.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// LooksLikeEnvelope reports whether raw is a JSON object shaped like an
// Envelope. It is meant for payloads arriving from outside, such as an
// uploaded backup file; typed code should use models.Memory.IsEncrypted.
func LooksLikeEnvelope(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	switch env.Algorithm {
	case models.AlgAESGCMPBKDF2, models.AlgAESGCMArgon2id:
	default:
		return false
	}
	return len(env.Salt) > 0 && len(env.IV) > 0 && len(env.Ciphertext) > 0
}
