package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxStripRounds bounds stripMarkup; nested encodings deeper than this are
// returned escaped.
const maxStripRounds = 8

// stripMarkup decodes entities, drops every tag and decodes the result again,
// until a round changes nothing. Markup hidden behind entities or split
// around other tags therefore cannot survive.
func stripMarkup(s string) string {
	for range maxStripRounds {
		next := html.UnescapeString(strict.Sanitize(unescapeAll(s)))
		if next == s {
			return s
		}
		s = next
	}
	return strict.Sanitize(s)
}

func unescapeAll(s string) string {
	for range maxStripRounds {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// SanitizeText removes all markup and control characters from a single-line
// value such as a title or a tag, and trims surrounding space.
func SanitizeText(s string) string {
	s = stripMarkup(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// SanitizeContent drops control characters other than line breaks and tabs.
// The text is otherwise kept as written.
func SanitizeContent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeMemory returns a sanitized copy of m. Sealed content is left
// untouched.
func SanitizeMemory(m *models.Memory) *models.Memory {
	c := m.Clone()
	if !c.IsEncrypted() {
		c.Title = SanitizeText(c.Title)
		text, _ := c.Text()
		c.Content = models.PlainContent{Text: SanitizeContent(text)}
	}
	for i, t := range c.Tags {
		c.Tags[i] = SanitizeText(t)
	}
	c.FilePath = strings.TrimSpace(c.FilePath)
	return c
}
