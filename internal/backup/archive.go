package backup

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/cryptox"
	"github.com/dmitrijs2005/almacen/internal/models"
)

const (
	bundleEntry = "bundle.json"
	mediaPrefix = "media/"

	// maxLayerSize caps every decoded layer.
	maxLayerSize = 512 << 20
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
)

// MediaFile is a file referenced by a memory, carried inside the archive.
type MediaFile struct {
	MemoryID int64
	Name     string
	Data     []byte
}

// Archive is the content of a backup before layering.
type Archive struct {
	Bundle []byte
	Media  []MediaFile
}

// PackOptions selects the outer layers.
type PackOptions struct {
	Compress bool
	// Password enables the encrypted layer when set.
	Password string
	Level    models.EncryptionLevel
}

// Layers reports which layers an archive was wrapped in.
type Layers struct {
	Encrypted     bool
	Compressed    bool
	IncludesMedia bool
}

// Pack wraps a: bundle JSON, then a zip when media are present, then gzip,
// then an encrypted file envelope.
func Pack(a *Archive, opts PackOptions) ([]byte, error) {
	data := a.Bundle

	if len(a.Media) > 0 {
		var err error
		if data, err = zipArchive(a); err != nil {
			return nil, fmt.Errorf("failed to build media archive: %w", err)
		}
	}

	if opts.Compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}

	if opts.Password != "" {
		env, err := cryptox.EncryptFile(data, bundleEntry, "application/octet-stream", opts.Password, opts.Level)
		if err != nil {
			return nil, err
		}
		if data, err = json.Marshal(env); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func zipArchive(a *Archive) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(bundleEntry)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(a.Bundle); err != nil {
		return nil, err
	}

	for _, f := range a.Media {
		w, err := zw.Create(mediaName(f.MemoryID, f.Name))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mediaName(id int64, name string) string {
	return mediaPrefix + strconv.FormatInt(id, 10) + "/" + path.Base(strings.ReplaceAll(name, "\\", "/"))
}

// Unpack peels the layers Pack added, detecting each one from its content.
// An encrypted archive needs password: ErrMissingKey when it is empty,
// ErrDecryption when it is wrong.
func Unpack(data []byte, password string) (*Archive, Layers, error) {
	var layers Layers

	if cryptox.LooksLikeEnvelope(data) {
		layers.Encrypted = true
		if password == "" {
			return nil, layers, common.ErrMissingKey
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, layers, malformed("envelope: %v", err)
		}
		plain, err := cryptox.DecryptFile(&env, password)
		if err != nil {
			return nil, layers, err
		}
		data = plain
	}

	if bytes.HasPrefix(data, gzipMagic) {
		layers.Compressed = true
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, layers, malformed("gzip: %v", err)
		}
		plain, err := readLimited(zr)
		if err != nil {
			return nil, layers, malformed("gzip: %v", err)
		}
		data = plain
	}

	if bytes.HasPrefix(data, zipMagic) {
		layers.IncludesMedia = true
		a, err := unzipArchive(data)
		if err != nil {
			return nil, layers, err
		}
		return a, layers, nil
	}

	return &Archive{Bundle: data}, layers, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxLayerSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxLayerSize {
		return nil, fmt.Errorf("layer exceeds %d bytes", maxLayerSize)
	}
	return data, nil
}

func unzipArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, malformed("zip: %v", err)
	}

	a := &Archive{}
	for _, f := range zr.File {
		switch {
		case f.Name == bundleEntry:
			if a.Bundle, err = readZipFile(f); err != nil {
				return nil, err
			}
		case strings.HasPrefix(f.Name, mediaPrefix):
			id, name, ok := parseMediaName(f.Name)
			if !ok {
				continue
			}
			body, err := readZipFile(f)
			if err != nil {
				return nil, err
			}
			a.Media = append(a.Media, MediaFile{MemoryID: id, Name: name, Data: body})
		}
	}
	if a.Bundle == nil {
		return nil, malformed("archive has no %s", bundleEntry)
	}
	return a, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, malformed("zip entry %s: %v", f.Name, err)
	}
	defer rc.Close()
	body, err := readLimited(rc)
	if err != nil {
		return nil, malformed("zip entry %s: %v", f.Name, err)
	}
	return body, nil
}

// parseMediaName accepts only media/<id>/<file> with a plain file name.
func parseMediaName(name string) (int64, string, bool) {
	parts := strings.Split(strings.TrimPrefix(name, mediaPrefix), "/")
	if len(parts) != 2 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	file := parts[1]
	if file == "" || file == "." || file == ".." {
		return 0, "", false
	}
	return id, file, true
}
