package models

// Algorithm identifies the AEAD cipher and key derivation used to produce an
// Envelope.
type Algorithm string

const (
	AlgAESGCMPBKDF2   Algorithm = "aes-256-gcm+pbkdf2-sha256"
	AlgAESGCMArgon2id Algorithm = "aes-256-gcm+argon2id"
)

// KDFParams records the cost parameters used at encryption time so that
// envelopes stay decryptable if defaults change later.
type KDFParams struct {
	Iterations uint32 `json:"iterations,omitempty"`
	MemoryKiB  uint32 `json:"memoryKiB,omitempty"`
	Threads    uint8  `json:"threads,omitempty"`
	KeyLength  uint32 `json:"keyLength"`
}

// Envelope is the ciphertext form of a record or a file. Byte slices are
// base64 in JSON, so an Envelope round-trips through any JSON store.
type Envelope struct {
	Algorithm  Algorithm  `json:"algorithm"`
	KDF        *KDFParams `json:"kdf,omitempty"`
	Salt       []byte     `json:"salt"`
	IV         []byte     `json:"iv"`
	Ciphertext []byte     `json:"ciphertext"`

	// File envelopes only.
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	c := *e
	c.Salt = append([]byte(nil), e.Salt...)
	c.IV = append([]byte(nil), e.IV...)
	c.Ciphertext = append([]byte(nil), e.Ciphertext...)
	if e.KDF != nil {
		kdf := *e.KDF
		c.KDF = &kdf
	}
	return &c
}
