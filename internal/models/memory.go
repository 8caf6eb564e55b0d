// Package models defines the data types shared by services, repositories,
// the bridge and the backup engine.
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// MemoryType classifies a memory.
type MemoryType string

const (
	MemoryTypeText  MemoryType = "text"
	MemoryTypeAudio MemoryType = "audio"
	MemoryTypePhoto MemoryType = "photo"
	MemoryTypeVideo MemoryType = "video"
)

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryTypeText, MemoryTypeAudio, MemoryTypePhoto, MemoryTypeVideo:
		return true
	}
	return false
}

// EncryptionLevel is the user-facing protection level of a memory.
type EncryptionLevel string

const (
	EncryptionNone     EncryptionLevel = "none"
	EncryptionBasic    EncryptionLevel = "basic"
	EncryptionAdvanced EncryptionLevel = "advanced"
	// EncryptionMaximum is accepted as a label only; it uses the advanced
	// algorithm.
	EncryptionMaximum EncryptionLevel = "maximum"
)

// Valid reports whether l is a known level. The empty level is treated as none.
func (l EncryptionLevel) Valid() bool {
	switch l {
	case "", EncryptionNone, EncryptionBasic, EncryptionAdvanced, EncryptionMaximum:
		return true
	}
	return false
}

// Enabled reports whether l asks for encryption.
func (l EncryptionLevel) Enabled() bool {
	return l != "" && l != EncryptionNone
}

// Privacy levels, from public to private. They are advisory.
const (
	PrivacyPublic  = 1
	PrivacyFriends = 2
	PrivacyFamily  = 3
	PrivacyPrivate = 4
)

// SealedTitle replaces the title of a memory whose title and content live in
// an Envelope.
const SealedTitle = "🔒"

// Content is either PlainContent or SealedContent.
type Content interface {
	isContent()
}

// PlainContent holds readable text.
type PlainContent struct {
	Text string
}

// SealedContent holds the envelope produced by sealing title and content.
type SealedContent struct {
	Envelope *Envelope
}

func (PlainContent) isContent()  {}
func (SealedContent) isContent() {}

// Memory is a single journal record.
type Memory struct {
	ID              int64
	Title           string
	Content         Content
	Type            MemoryType
	Tags            []string
	FilePath        string
	MediaURLs       []string
	PrivacyLevel    int
	EncryptionLevel EncryptionLevel
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsEncrypted reports whether the content is sealed.
func (m *Memory) IsEncrypted() bool {
	_, ok := m.Content.(SealedContent)
	return ok
}

// Text returns the plaintext content, or false if the content is sealed.
func (m *Memory) Text() (string, bool) {
	switch c := m.Content.(type) {
	case PlainContent:
		return c.Text, true
	case nil:
		return "", true
	}
	return "", false
}

// Envelope returns the sealed envelope, or false if the content is plain.
func (m *Memory) Envelope() (*Envelope, bool) {
	c, ok := m.Content.(SealedContent)
	if !ok || c.Envelope == nil {
		return nil, false
	}
	return c.Envelope, true
}

// Clone returns a deep copy of m, so cached values cannot be mutated through
// a returned pointer.
func (m *Memory) Clone() *Memory {
	c := *m
	c.Tags = slices.Clone(m.Tags)
	c.MediaURLs = slices.Clone(m.MediaURLs)
	if env, ok := m.Envelope(); ok {
		c.Content = SealedContent{Envelope: env.Clone()}
	}
	return &c
}

// memoryJSON is the wire form shared by the SQLite rows, the local store, the
// bridge and backup bundles. Sealed content is stored as an envelope object.
type memoryJSON struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Content         json.RawMessage `json:"content"`
	Type            MemoryType      `json:"type"`
	Tags            []string        `json:"tags"`
	FilePath        string          `json:"filePath,omitempty"`
	MediaURLs       []string        `json:"mediaUrls,omitempty"`
	PrivacyLevel    int             `json:"privacyLevel"`
	EncryptionLevel EncryptionLevel `json:"encryptionLevel"`
	IsEncrypted     bool            `json:"isEncrypted"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// MarshalJSON encodes m with "isEncrypted" derived from the content variant.
func (m Memory) MarshalJSON() ([]byte, error) {
	w := memoryJSON{
		ID:              m.ID,
		Title:           m.Title,
		Type:            m.Type,
		Tags:            m.Tags,
		FilePath:        m.FilePath,
		MediaURLs:       m.MediaURLs,
		PrivacyLevel:    m.PrivacyLevel,
		EncryptionLevel: m.EncryptionLevel,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}

	var err error
	if env, ok := m.Envelope(); ok {
		w.IsEncrypted = true
		w.Content, err = json.Marshal(env)
	} else {
		text, _ := m.Text()
		w.Content, err = json.Marshal(text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. An encrypted memory accepts its
// envelope either as an object or as a JSON string holding the object.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var w memoryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = Memory{
		ID:              w.ID,
		Title:           w.Title,
		Type:            w.Type,
		Tags:            w.Tags,
		FilePath:        w.FilePath,
		MediaURLs:       w.MediaURLs,
		PrivacyLevel:    w.PrivacyLevel,
		EncryptionLevel: w.EncryptionLevel,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}

	if !w.IsEncrypted {
		var text string
		if len(w.Content) > 0 && string(w.Content) != "null" {
			if err := json.Unmarshal(w.Content, &text); err != nil {
				return fmt.Errorf("memory %d: plain content must be a string: %w", w.ID, err)
			}
		}
		m.Content = PlainContent{Text: text}
		return nil
	}

	raw := []byte(w.Content)
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = []byte(inner)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("memory %d: encrypted content is not an envelope: %w", w.ID, err)
	}
	if len(env.Ciphertext) == 0 {
		return fmt.Errorf("memory %d: encrypted content has no ciphertext", w.ID)
	}
	m.Content = SealedContent{Envelope: &env}
	return nil
}

// TagCount is a distinct tag and the number of memories carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
