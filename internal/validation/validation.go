// Package validation checks memories and tags before they reach storage and
// strips markup from user-entered text.
//
// Every check reports all violations at once; Result.Err turns them into a
// single *Error that matches common.ErrValidation.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 100_000
	MaxTags          = 20
	MaxTagLength     = 30
	MaxFilePath      = 1024
	MaxPrivacyLevel  = models.PrivacyPrivate
)

// FieldError is one violated rule.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// Result collects the outcome of a check.
type Result struct {
	IsValid bool
	Errors  []FieldError
}

func newResult() *Result {
	return &Result{IsValid: true}
}

func (r *Result) add(field, format string, args ...any) {
	r.IsValid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) merge(o *Result) {
	if o.IsValid {
		return
	}
	r.IsValid = false
	r.Errors = append(r.Errors, o.Errors...)
}

// Err returns nil when the result is valid and an *Error otherwise.
func (r *Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &Error{Fields: r.Errors}
}

// Error carries every violation of a failed check.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, common.ErrValidation) succeed.
func (e *Error) Is(target error) bool {
	return target == common.ErrValidation
}

// Messages returns the violations as "field: message" strings.
func (e *Error) Messages() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.String()
	}
	return out
}

// Memory checks m. Call it on a sanitized copy (see SanitizeMemory).
func Memory(m *models.Memory) *Result {
	r := newResult()

	if m == nil {
		r.add("memory", "is required")
		return r
	}

	switch n := utf8.RuneCountInString(strings.TrimSpace(m.Title)); {
	case n == 0:
		r.add("title", "is required")
	case n > MaxTitleLength:
		r.add("title", "must be at most %d characters, got %d", MaxTitleLength, n)
	}

	if !m.Type.Valid() {
		r.add("type", "unknown memory type %q", m.Type)
	}
	if !m.EncryptionLevel.Valid() {
		r.add("encryptionLevel", "unknown encryption level %q", m.EncryptionLevel)
	}
	if m.PrivacyLevel < 0 || m.PrivacyLevel > MaxPrivacyLevel {
		r.add("privacyLevel", "must be between 0 and %d", MaxPrivacyLevel)
	}

	checkContent(r, m)

	if len(m.FilePath) > MaxFilePath {
		r.add("filePath", "must be at most %d bytes", MaxFilePath)
	}
	for i, u := range m.MediaURLs {
		if strings.TrimSpace(u) == "" {
			r.add("mediaUrls", "entry %d is empty", i)
		}
	}

	r.merge(Tags(m.Tags))
	return r
}

func checkContent(r *Result, m *models.Memory) {
	if m.IsEncrypted() {
		if _, ok := m.Envelope(); !ok {
			r.add("content", "encrypted content has no envelope")
		}
		return
	}

	text, _ := m.Text()
	n := utf8.RuneCountInString(text)
	if n > MaxContentLength {
		r.add("content", "must be at most %d characters, got %d", MaxContentLength, n)
	}

	empty := strings.TrimSpace(text) == ""
	if m.Type == models.MemoryTypeText || m.Type == "" {
		if empty {
			r.add("content", "is required for text memories")
		}
		return
	}
	if empty && m.FilePath == "" && len(m.MediaURLs) == 0 {
		r.add("content", "%s memories need content, a file or a media URL", m.Type)
	}
}

// Tags checks the tag list of a memory.
func Tags(tags []string) *Result {
	r := newResult()
	if len(tags) > MaxTags {
		r.add("tags", "at most %d tags allowed, got %d", MaxTags, len(tags))
	}
	for _, t := range tags {
		r.merge(Tag(t))
	}
	return r
}

// Tag checks a single tag: 1 to 30 letters, digits, spaces, '-' or '_'.
func Tag(tag string) *Result {
	r := newResult()

	n := utf8.RuneCountInString(strings.TrimSpace(tag))
	switch {
	case n == 0:
		r.add("tags", "tag must not be empty")
		return r
	case n > MaxTagLength:
		r.add("tags", "tag %q must be at most %d characters", tag, MaxTagLength)
	}

	for _, c := range tag {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_' {
			continue
		}
		r.add("tags", "tag %q contains invalid character %q", tag, c)
		break
	}
	return r
}
