package cryptox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// ErrAlreadySealed is returned when EncryptRecord is given sealed content.
var ErrAlreadySealed = errors.New("record content is already encrypted")

// recordSecret is the part of a memory that goes inside the envelope.
type recordSecret struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EncryptRecord seals the title and content of m under password. The rest of
// the record stays readable so it can be listed and filtered while locked.
func EncryptRecord(m *models.Memory, password string, level models.EncryptionLevel) (*models.Envelope, error) {
	if password == "" {
		return nil, common.ErrMissingKey
	}
	text, ok := m.Text()
	if !ok {
		return nil, ErrAlreadySealed
	}

	payload, err := json.Marshal(recordSecret{Title: m.Title, Content: text})
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(payload)

	return Seal(payload, password, level)
}

// DecryptRecord opens an envelope produced by EncryptRecord and returns a
// memory carrying the recovered title and plain content. Callers merge the
// clear fields of the stored record themselves.
func DecryptRecord(env *models.Envelope, password string) (*models.Memory, error) {
	payload, err := Open(env, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(payload)

	var s recordSecret
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: record payload: %v", common.ErrDecryption, err)
	}
	return &models.Memory{Title: s.Title, Content: models.PlainContent{Text: s.Content}}, nil
}

// SealMemory returns a copy of m whose title and content are sealed.
func SealMemory(m *models.Memory, password string, level models.EncryptionLevel) (*models.Memory, error) {
	if !level.Enabled() {
		level = models.EncryptionAdvanced
	}
	env, err := EncryptRecord(m, password, level)
	if err != nil {
		return nil, err
	}
	sealed := m.Clone()
	sealed.Title = models.SealedTitle
	sealed.Content = models.SealedContent{Envelope: env}
	sealed.EncryptionLevel = level
	return sealed, nil
}

// OpenMemory returns a plain copy of m. Plain memories are returned as a copy
// without touching the password.
func OpenMemory(m *models.Memory, password string) (*models.Memory, error) {
	env, ok := m.Envelope()
	if !ok {
		return m.Clone(), nil
	}
	secret, err := DecryptRecord(env, password)
	if err != nil {
		return nil, err
	}
	plain := m.Clone()
	plain.Title = secret.Title
	plain.Content = secret.Content
	return plain, nil
}
