package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/stretchr/testify/require"
)

func plainMemory() *models.Memory {
	return &models.Memory{
		ID:      42,
		Title:   "Cumpleaños de la abuela",
		Content: models.PlainContent{Text: "Tarta de tres leches y muchas risas."},
		Type:    models.MemoryTypeText,
		Tags:    []string{"familia"},
	}
}

func TestEncryptDecryptRecord_RoundTrip(t *testing.T) {
	m := plainMemory()
	env, err := EncryptRecord(m, "Clave$egura1", models.EncryptionAdvanced)
	require.NoError(t, err)

	got, err := DecryptRecord(env, "Clave$egura1")
	require.NoError(t, err)
	require.Equal(t, m.Title, got.Title)
	text, ok := got.Text()
	require.True(t, ok)
	require.Equal(t, "Tarta de tres leches y muchas risas.", text)
}

func TestDecryptRecord_WrongPassword(t *testing.T) {
	env, err := EncryptRecord(plainMemory(), "password-A", models.EncryptionBasic)
	require.NoError(t, err)

	for _, wrong := range []string{"password-B", "password-", "password-AA", "Password-A"} {
		_, err := DecryptRecord(env, wrong)
		require.ErrorIs(t, err, common.ErrDecryption, wrong)
	}
}

func TestEncryptRecord_IsNonDeterministic(t *testing.T) {
	m := plainMemory()
	a, err := EncryptRecord(m, "pw", models.EncryptionBasic)
	require.NoError(t, err)
	b, err := EncryptRecord(m, "pw", models.EncryptionBasic)
	require.NoError(t, err)

	require.NotEqual(t, a.Salt, b.Salt)
	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)

	for _, env := range []*models.Envelope{a, b} {
		got, err := DecryptRecord(env, "pw")
		require.NoError(t, err)
		require.Equal(t, m.Title, got.Title)
	}
}

func TestEncryptRecord_Errors(t *testing.T) {
	_, err := EncryptRecord(plainMemory(), "", models.EncryptionBasic)
	require.ErrorIs(t, err, common.ErrMissingKey)

	sealed, err := SealMemory(plainMemory(), "pw", models.EncryptionBasic)
	require.NoError(t, err)
	_, err = EncryptRecord(sealed, "pw", models.EncryptionBasic)
	require.ErrorIs(t, err, ErrAlreadySealed)
}

func TestSealOpenMemory(t *testing.T) {
	m := plainMemory()
	sealed, err := SealMemory(m, "pw", models.EncryptionNone)
	require.NoError(t, err)
	require.True(t, sealed.IsEncrypted())
	require.Equal(t, models.SealedTitle, sealed.Title)
	require.Equal(t, models.EncryptionAdvanced, sealed.EncryptionLevel)
	require.Equal(t, m.Tags, sealed.Tags)
	require.False(t, m.IsEncrypted(), "input must not be modified")

	opened, err := OpenMemory(sealed, "pw")
	require.NoError(t, err)
	require.Equal(t, m.Title, opened.Title)
	require.Equal(t, m.Content, opened.Content)
	require.Equal(t, m.ID, opened.ID)

	same, err := OpenMemory(m, "")
	require.NoError(t, err)
	require.Equal(t, m, same)
}

func TestEncryptDecryptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota.txt")
	require.NoError(t, os.WriteFile(path, []byte("audio bytes"), 0o600))

	env, err := EncryptFileAt(path, "pw", models.EncryptionBasic)
	require.NoError(t, err)
	require.Equal(t, "nota.txt", env.FileName)
	require.Contains(t, env.MimeType, "text/plain")

	data, err := DecryptFile(env, "pw")
	require.NoError(t, err)
	require.Equal(t, "audio bytes", string(data))

	_, err = DecryptFile(env, "nope")
	require.ErrorIs(t, err, common.ErrDecryption)

	_, err = EncryptFileAt(filepath.Join(t.TempDir(), "missing"), "pw", models.EncryptionBasic)
	require.Error(t, err)
}
