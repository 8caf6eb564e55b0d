package cli

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/validation"
)

var errUnlockFailed = errors.New("wrong key or no master key set")

// describe turns an error into a message for the user.
func describe(err error) string {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return "invalid input: " + strings.Join(verr.Messages(), "; ")
	case errors.Is(err, common.ErrMissingKey):
		return "no key available, run 'unlock' or 'setkey' first"
	case errors.Is(err, common.ErrDecryption):
		return "decryption failed, wrong key or damaged data"
	case errors.Is(err, common.ErrNotFound):
		return "not found"
	case errors.Is(err, common.ErrUnsupported):
		return "not supported by the configured backup destination"
	case errors.Is(err, common.ErrTamperDetected):
		return "audit log tampered: " + err.Error()
	case errors.Is(err, common.ErrQuotaExceeded):
		return "local storage is full"
	}
	return err.Error()
}
