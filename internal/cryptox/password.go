package cryptox

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password ValidatePassword accepts.
const MinPasswordLength = 8

// PasswordReport lists every rule a password violates.
type PasswordReport struct {
	IsValid bool
	Errors  []string
}

// ValidatePassword checks length and character-class diversity and reports
// all violations, not just the first.
func ValidatePassword(password string) PasswordReport {
	r := PasswordReport{IsValid: true}
	add := func(msg string) {
		r.IsValid = false
		r.Errors = append(r.Errors, msg)
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		add("password must be at least 8 characters long")
	}

	var lower, upper, digit, symbol bool
	for _, c := range password {
		switch {
		case unicode.IsLower(c):
			lower = true
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsDigit(c):
			digit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			symbol = true
		}
	}
	if !lower {
		add("password must contain a lowercase letter")
	}
	if !upper {
		add("password must contain an uppercase letter")
	}
	if !digit {
		add("password must contain a digit")
	}
	if !symbol {
		add("password must contain a symbol")
	}
	return r
}

const (
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!#$%&*+-=?@^_~"

	masterKeyLength = 32
)

// GenerateMasterKey returns a random 32-character key that always passes
// ValidatePassword. Look-alike characters (l, I, O, 0, 1) are excluded.
func GenerateMasterKey() (string, error) {
	alphabet := lowerChars + upperChars + digitChars + symbolChars
	for {
		var sb strings.Builder
		for range masterKeyLength {
			c, err := pick(alphabet)
			if err != nil {
				return "", err
			}
			sb.WriteByte(c)
		}
		key := sb.String()
		if ValidatePassword(key).IsValid {
			return key, nil
		}
	}
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
