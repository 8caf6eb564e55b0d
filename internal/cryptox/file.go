package cryptox

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/almacen/internal/models"
)

// EncryptFile seals an opaque blob. name and mimeType are kept in clear on the
// envelope so a restored file can be written back under its original name.
func EncryptFile(data []byte, name, mimeType, password string, level models.EncryptionLevel) (*models.Envelope, error) {
	env, err := Seal(data, password, level)
	if err != nil {
		return nil, err
	}
	env.FileName = name
	env.MimeType = mimeType
	return env, nil
}

// EncryptFileAt reads the file at path and seals it, guessing the mime type
// from the extension or, failing that, from the content.
func EncryptFileAt(path, password string, level models.EncryptionLevel) (*models.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return EncryptFile(data, filepath.Base(path), mimeType, password, level)
}

// DecryptFile opens a file envelope.
func DecryptFile(env *models.Envelope, password string) ([]byte, error) {
	return Open(env, password)
}
