package models

import (
	"time"

	"github.com/dmitrijs2005/almacen/internal/timex"
)

// UserConfigKey is the settings key holding the serialized UserConfig.
const UserConfigKey = "user_config"

// UserConfig holds per-user preferences. It is stored in the settings
// collection and travels inside backups.
type UserConfig struct {
	AutoEncrypt     bool            `json:"autoEncrypt"`
	EncryptionLevel EncryptionLevel `json:"encryptionLevel"`
	// AuditRetention is advisory, in days. Nothing purges the audit log.
	AuditRetention int            `json:"auditRetention"`
	SessionTimeout timex.Duration `json:"sessionTimeout"`
}

// DefaultUserConfig returns the preferences of a fresh vault.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		AutoEncrypt:     false,
		EncryptionLevel: EncryptionAdvanced,
		AuditRetention:  365,
		SessionTimeout:  timex.Duration{Duration: 15 * time.Minute},
	}
}
