package cryptox

import (
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/models"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeyLength  = 32
	SaltLength = 16
	NonceSize  = 12

	PBKDF2Iterations = 100_000

	Argon2Time    = 1
	Argon2Memory  = 64 * 1024
	Argon2Threads = 4
)

// Upper bounds accepted from envelopes, so a crafted envelope cannot make
// decryption allocate or spin without limit.
const (
	maxPBKDF2Iterations = 10_000_000
	maxArgon2Time       = 16
	maxArgon2Memory     = 1024 * 1024
)

// AlgorithmFor maps an encryption level to the algorithm that implements it.
// Levels that do not ask for encryption get the advanced algorithm, so an
// explicit EncryptRecord call always encrypts.
func AlgorithmFor(level models.EncryptionLevel) models.Algorithm {
	if level == models.EncryptionBasic {
		return models.AlgAESGCMPBKDF2
	}
	return models.AlgAESGCMArgon2id
}

func defaultParams(alg models.Algorithm) *models.KDFParams {
	switch alg {
	case models.AlgAESGCMPBKDF2:
		return &models.KDFParams{Iterations: PBKDF2Iterations, KeyLength: KeyLength}
	default:
		return &models.KDFParams{
			Iterations: Argon2Time,
			MemoryKiB:  Argon2Memory,
			Threads:    Argon2Threads,
			KeyLength:  KeyLength,
		}
	}
}

// DeriveKey stretches password with salt according to alg and p. A nil p
// means the current defaults for alg.
func DeriveKey(password, salt []byte, alg models.Algorithm, p *models.KDFParams) ([]byte, error) {
	if p == nil {
		p = defaultParams(alg)
	}
	if p.KeyLength != KeyLength {
		return nil, fmt.Errorf("unsupported key length %d", p.KeyLength)
	}

	switch alg {
	case models.AlgAESGCMPBKDF2:
		if p.Iterations == 0 || p.Iterations > maxPBKDF2Iterations {
			return nil, fmt.Errorf("pbkdf2 iterations %d out of range", p.Iterations)
		}
		return pbkdf2.Key(password, salt, int(p.Iterations), KeyLength, sha256.New), nil

	case models.AlgAESGCMArgon2id:
		if p.Iterations == 0 || p.Iterations > maxArgon2Time ||
			p.MemoryKiB == 0 || p.MemoryKiB > maxArgon2Memory || p.Threads == 0 {
			return nil, fmt.Errorf("argon2 parameters out of range")
		}
		return argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Threads, KeyLength), nil

	default:
		return nil, fmt.Errorf("unknown algorithm %q", alg)
	}
}
