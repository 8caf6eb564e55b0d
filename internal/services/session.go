package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/cryptox"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
)

// VerifierKey is the settings key of the sealed probe that proves knowledge
// of the master key.
const VerifierKey = "master_key_verifier"

var verifierProbe = []byte("almacen/master-key/probe/v1")

// KeyRing gives a service access to the master key without handing it the
// whole session.
type KeyRing interface {
	// Key returns the master key, or ErrMissingKey while locked.
	Key() (string, error)
	// AutoEncrypt reports whether new memories are sealed by default.
	AutoEncrypt() bool
	// EncryptionLevel is the level used when AutoEncrypt applies.
	EncryptionLevel() models.EncryptionLevel
}

// Session holds the master key in memory while unlocked. Only a verifier is
// persisted, never the key.
type Session struct {
	mu       sync.Mutex
	repo     settings.Repository
	config   *ConfigService
	audit    auditor
	log      logging.Logger
	key      []byte
	unlocked bool

	autoEncrypt bool
	level       models.EncryptionLevel

	timeout time.Duration
	timer   *time.Timer
	gen     uint64
}

var _ KeyRing = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionAudit records key changes in the audit log.
func WithSessionAudit(a *AuditService) SessionOption {
	return func(s *Session) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithSessionTimeout sets the auto-lock delay. Zero disables auto-lock.
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// NewSession returns a locked session.
func NewSession(repo settings.Repository, config *ConfigService, logger logging.Logger, opts ...SessionOption) *Session {
	s := &Session{
		repo:   repo,
		config: config,
		log:    logger.With("module", "session"),
		level:  models.EncryptionAdvanced,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads the auto-encrypt policy and the session timeout from the user
// config.
func (s *Session) Load(ctx context.Context) error {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoEncrypt = cfg.AutoEncrypt
	if cfg.EncryptionLevel.Enabled() {
		s.level = cfg.EncryptionLevel
	}
	s.timeout = cfg.SessionTimeout.Duration
	return nil
}

// SetMasterKey replaces the verifier with one for key. The session stays
// locked until UnlockWithPassword succeeds.
func (s *Session) SetMasterKey(ctx context.Context, key string) error {
	if key == "" {
		return common.ErrMissingKey
	}

	env, err := cryptox.Seal(verifierProbe, key, models.EncryptionAdvanced)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, VerifierKey, raw); err != nil {
		return fmt.Errorf("failed to store key verifier: %w", err)
	}

	s.mu.Lock()
	s.lockLocked()
	s.mu.Unlock()

	s.record(ctx, models.ActionKeySet)
	s.log.Info(ctx, "master key set")
	return nil
}

// UnlockWithPassword unlocks the session when password matches the stored
// verifier. Failures are logged, never returned.
func (s *Session) UnlockWithPassword(ctx context.Context, password string) bool {
	if password == "" {
		s.log.Warn(ctx, "unlock attempted with empty password")
		return false
	}

	raw, err := s.repo.Get(ctx, VerifierKey)
	if errors.Is(err, common.ErrNotFound) {
		s.log.Warn(ctx, "unlock attempted without a master key")
		return false
	}
	if err != nil {
		s.log.Error(ctx, "failed to read key verifier", "error", err)
		return false
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Error(ctx, "key verifier is damaged", "error", err)
		return false
	}
	probe, err := cryptox.Open(&env, password)
	if err != nil || subtle.ConstantTimeCompare(probe, verifierProbe) != 1 {
		s.log.Warn(ctx, "unlock failed")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = []byte(password)
	s.unlocked = true
	s.armLocked()
	s.log.Info(ctx, "session unlocked")
	return true
}

// ClearMasterKey removes the verifier and locks the session.
func (s *Session) ClearMasterKey(ctx context.Context) error {
	err := s.repo.Delete(ctx, VerifierKey)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to delete key verifier: %w", err)
	}

	s.mu.Lock()
	s.lockLocked()
	s.mu.Unlock()

	s.record(ctx, models.ActionKeyCleared)
	s.log.Info(ctx, "master key cleared")
	return nil
}

// Lock drops the in-memory key. The verifier stays.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *Session) lockLocked() {
	common.WipeByteArray(s.key)
	s.key = nil
	s.unlocked = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// armLocked restarts the auto-lock timer. Callers hold s.mu.
func (s *Session) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	if !s.unlocked || s.timeout <= 0 {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.timeout, func() { s.expire(gen) })
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.unlocked {
		return
	}
	s.lockLocked()
	s.log.Info(context.Background(), "session locked after inactivity")
}

// Key returns the master key and refreshes the auto-lock timer.
func (s *Session) Key() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked {
		return "", common.ErrMissingKey
	}
	s.armLocked()
	return string(s.key), nil
}

// IsUnlocked reports whether the key is held in memory.
func (s *Session) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

// HasMasterKey reports whether a verifier is stored.
func (s *Session) HasMasterKey(ctx context.Context) bool {
	_, err := s.repo.Get(ctx, VerifierKey)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.log.Error(ctx, "failed to read key verifier", "error", err)
	}
	return err == nil
}

// SetAutoEncrypt stores the auto-encrypt policy in the user config.
func (s *Session) SetAutoEncrypt(ctx context.Context, enabled bool) error {
	if _, err := s.config.Update(ctx, func(c *models.UserConfig) { c.AutoEncrypt = enabled }); err != nil {
		return err
	}
	s.mu.Lock()
	s.autoEncrypt = enabled
	s.mu.Unlock()
	return nil
}

// AutoEncrypt reports the auto-encrypt policy.
func (s *Session) AutoEncrypt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoEncrypt
}

// EncryptionLevel returns the level applied by auto-encrypt.
func (s *Session) EncryptionLevel() models.EncryptionLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *Session) record(ctx context.Context, action string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, action, "session", nil); err != nil {
		s.log.Error(ctx, "failed to append audit entry", "action", action, "error", err)
	}
}
