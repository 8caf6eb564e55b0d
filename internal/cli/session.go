package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/cryptox"
)

func (a *App) SetKey(ctx context.Context, _ []string) error {
	key, err := getPassword(a.in, "New master key", a.out)
	if err != nil {
		return err
	}
	if report := cryptox.ValidatePassword(key); !report.IsValid {
		return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(report.Errors, "; "))
	}
	again, err := getPassword(a.in, "Repeat master key", a.out)
	if err != nil {
		return err
	}
	if again != key {
		return fmt.Errorf("%w: keys do not match", common.ErrValidation)
	}

	if a.session.HasMasterKey(ctx) {
		fmt.Fprintln(a.out, "Memories sealed with the previous key still need that key to open.")
	}
	if err := a.session.SetMasterKey(ctx, key); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master key set. Run 'unlock' to use it.")
	return nil
}

func (a *App) GenKey(ctx context.Context, _ []string) error {
	key, err := cryptox.GenerateMasterKey()
	if err != nil {
		return err
	}
	if err := a.session.SetMasterKey(ctx, key); err != nil {
		return err
	}
	if !a.session.UnlockWithPassword(ctx, key) {
		return errUnlockFailed
	}
	fmt.Fprintf(a.out, "Generated master key: %s\nStore it somewhere safe; it cannot be recovered.\n", key)
	return nil
}

func (a *App) Unlock(ctx context.Context, _ []string) error {
	if !a.session.HasMasterKey(ctx) {
		return common.ErrMissingKey
	}
	key, err := getPassword(a.in, "Master key", a.out)
	if err != nil {
		return err
	}
	if !a.session.UnlockWithPassword(ctx, key) {
		return errUnlockFailed
	}
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

func (a *App) Lock(_ context.Context, _ []string) error {
	a.session.Lock()
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

func (a *App) Forget(ctx context.Context, _ []string) error {
	if !confirm(a.in, "Remove the master key? Sealed memories stay sealed.", a.out) {
		return nil
	}
	if err := a.session.ClearMasterKey(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master key removed.")
	return nil
}

func (a *App) AutoEncrypt(ctx context.Context, args []string) error {
	if len(args) == 0 {
		state := "off"
		if a.session.AutoEncrypt() {
			state = "on"
		}
		fmt.Fprintf(a.out, "Auto-encrypt is %s (level %s).\n", state, a.session.EncryptionLevel())
		return nil
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
	default:
		return fmt.Errorf("%w: usage: autoencrypt on|off", common.ErrValidation)
	}
	if err := a.session.SetAutoEncrypt(ctx, enabled); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Auto-encrypt set to %t.\n", enabled)
	return nil
}
