package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/cryptox"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/validation"
)

// DefaultCacheSize bounds the memory cache when no size is configured.
const DefaultCacheSize = 1000

type memoryOptions struct {
	password string
}

// MemoryOption adjusts a single Save or Open call.
type MemoryOption func(*memoryOptions)

// WithPassword uses password instead of the session key.
func WithPassword(password string) MemoryOption {
	return func(o *memoryOptions) { o.password = password }
}

// MemoryService stores memories with validation, optional encryption, a
// read cache and audit hooks.
type MemoryService struct {
	repo  memories.Repository
	audit auditor
	cache *ristretto.Cache[int64, *models.Memory]
	log   logging.Logger
	now   func() time.Time

	idMu   sync.Mutex
	lastID int64
}

// NewMemoryService returns a service over repo. audit may be nil.
func NewMemoryService(repo memories.Repository, audit *AuditService, logger logging.Logger, cacheSize int64) (*MemoryService, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := ristretto.NewCache(&ristretto.Config[int64, *models.Memory]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	s := &MemoryService{repo: repo, cache: cache, log: logger.With("module", "memories"), now: time.Now}
	if audit != nil {
		s.audit = audit
	}
	return s, nil
}

// Close releases the cache.
func (s *MemoryService) Close() {
	s.cache.Close()
}

// nextID returns the current Unix time in milliseconds, bumped past the last
// id handed out by this process.
func (s *MemoryService) nextID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *MemoryService) remember(m *models.Memory) {
	s.cache.Set(m.ID, m.Clone(), 1)
	s.cache.Wait()
}

// Save validates, optionally seals and stores m. On success m receives the
// assigned id and timestamps. Validation and key errors are returned; storage
// failures are logged and reported as false with a nil error.
func (s *MemoryService) Save(ctx context.Context, keys KeyRing, m *models.Memory, opts ...MemoryOption) (bool, error) {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}

	clean := validation.SanitizeMemory(m)
	if err := validation.Memory(clean).Err(); err != nil {
		return false, err
	}

	level := clean.EncryptionLevel
	if !level.Enabled() && !clean.IsEncrypted() && keys != nil && keys.AutoEncrypt() {
		level = keys.EncryptionLevel()
	}

	switch {
	case clean.IsEncrypted():
	case level.Enabled():
		password := o.password
		if password == "" && keys != nil {
			password, _ = keys.Key()
		}
		if password == "" {
			return false, common.ErrMissingKey
		}
		sealed, err := cryptox.SealMemory(clean, password, level)
		if err != nil {
			return false, err
		}
		clean = sealed
	default:
		clean.EncryptionLevel = models.EncryptionNone
	}

	action := models.ActionMemoryCreate
	if clean.ID == 0 {
		clean.ID = s.nextID()
	} else if prev, ok := s.Get(ctx, clean.ID); ok {
		action = models.ActionMemoryUpdate
		clean.CreatedAt = prev.CreatedAt
	}

	now := s.now().UTC()
	if clean.CreatedAt.IsZero() {
		clean.CreatedAt = now
	}
	clean.UpdatedAt = now
	if clean.PrivacyLevel == 0 {
		clean.PrivacyLevel = models.PrivacyPublic
	}

	if err := s.repo.Save(ctx, clean); err != nil {
		s.log.Error(ctx, "failed to save memory", "id", clean.ID, "error", err)
		return false, nil
	}
	s.remember(clean)

	m.ID = clean.ID
	m.CreatedAt = clean.CreatedAt
	m.UpdatedAt = clean.UpdatedAt

	s.record(ctx, action, clean.ID, map[string]any{
		"type":      clean.Type,
		"encrypted": clean.IsEncrypted(),
	})
	s.log.Info(ctx, "memory saved", "id", clean.ID, "encrypted", clean.IsEncrypted())
	return true, nil
}

func (s *MemoryService) load(ctx context.Context, id int64) (*models.Memory, error) {
	if m, ok := s.cache.Get(id); ok {
		return m.Clone(), nil
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(m)
	return m, nil
}

// Get returns the stored form of a memory. Sealed memories stay sealed.
func (s *MemoryService) Get(ctx context.Context, id int64) (*models.Memory, bool) {
	m, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Error(ctx, "failed to load memory", "id", id, "error", err)
		}
		return nil, false
	}
	return m, true
}

// Open returns a readable copy of a memory, decrypting it when sealed.
func (s *MemoryService) Open(ctx context.Context, keys KeyRing, id int64, opts ...MemoryOption) (*models.Memory, error) {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsEncrypted() {
		return m, nil
	}

	password := o.password
	if password == "" && keys != nil {
		password, _ = keys.Key()
	}
	if password == "" {
		return nil, common.ErrMissingKey
	}
	return cryptox.OpenMemory(m, password)
}

// Delete removes a memory for good.
func (s *MemoryService) Delete(ctx context.Context, id int64) bool {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Error(ctx, "failed to delete memory", "id", id, "error", err)
		}
		s.cache.Del(id)
		return false
	}
	s.cache.Del(id)
	s.record(ctx, models.ActionMemoryDelete, id, nil)
	s.log.Info(ctx, "memory deleted", "id", id)
	return true
}

// List returns memories newest first. limit <= 0 returns all of them.
func (s *MemoryService) List(ctx context.Context, limit, offset int) []models.Memory {
	ms, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.log.Error(ctx, "failed to list memories", "error", err)
		return []models.Memory{}
	}
	return ms
}

// Tags counts the distinct tags of all stored memories, most used first.
func (s *MemoryService) Tags(ctx context.Context) []models.TagCount {
	ms, err := memories.All(ctx, s.repo)
	if err != nil {
		s.log.Error(ctx, "failed to list memories", "error", err)
		return []models.TagCount{}
	}

	counts := make(map[string]int)
	for _, m := range ms {
		for _, t := range m.Tags {
			counts[t]++
		}
	}

	out := make([]models.TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, models.TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Invalidate empties the cache.
func (s *MemoryService) Invalidate() {
	s.cache.Clear()
}

func (s *MemoryService) record(ctx context.Context, action string, id int64, details any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, action, fmt.Sprintf("memory/%d", id), details); err != nil {
		s.log.Error(ctx, "failed to append audit entry", "action", action, "error", err)
	}
}
