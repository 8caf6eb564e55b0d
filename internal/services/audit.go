package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/audit"
	"github.com/google/uuid"
)

// DefaultUserID is recorded when no user id option is given.
const DefaultUserID = "local"

const hashDomain = "almacen/audit/v1"

// emptyDetails is stored for entries without details, so every backend
// returns the same bytes.
const emptyDetails = "{}"

type auditor interface {
	Append(ctx context.Context, action, resource string, details any, opts ...AuditOption) (*models.AuditEntry, error)
}

// AuditOption sets an optional field of a new entry.
type AuditOption func(*models.AuditEntry)

func WithUserID(id string) AuditOption {
	return func(e *models.AuditEntry) { e.UserID = id }
}

func WithIPAddress(ip string) AuditOption {
	return func(e *models.AuditEntry) { e.IPAddress = ip }
}

func WithUserAgent(ua string) AuditOption {
	return func(e *models.AuditEntry) { e.UserAgent = ua }
}

// AuditService appends to and checks the hash-chained audit log.
type AuditService struct {
	mu   sync.Mutex
	repo audit.Repository
	log  logging.Logger
	now  func() time.Time
}

var _ auditor = (*AuditService)(nil)

func NewAuditService(repo audit.Repository, logger logging.Logger) *AuditService {
	return &AuditService{repo: repo, log: logger.With("module", "audit"), now: time.Now}
}

// Append adds an entry linked to the current tail of the log. details may be
// nil, raw JSON bytes or any value encodable as JSON.
func (s *AuditService) Append(ctx context.Context, action, resource string, details any, opts ...AuditOption) (*models.AuditEntry, error) {
	raw, err := encodeDetails(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit details: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.repo.Last(ctx)
	if err != nil {
		return nil, err
	}

	e := &models.AuditEntry{
		ID:        uuid.NewString(),
		Seq:       1,
		Timestamp: s.now().UTC(),
		Action:    action,
		Resource:  resource,
		UserID:    DefaultUserID,
		Details:   raw,
	}
	if last != nil {
		e.Seq = last.Seq + 1
		e.PrevHash = last.Hash
	}
	for _, o := range opts {
		o(e)
	}

	if e.Hash, err = EntryHash(e); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "audit entry appended", "seq", e.Seq, "action", action)
	return e, nil
}

func encodeDetails(details any) (json.RawMessage, error) {
	var raw []byte
	switch d := details.(type) {
	case nil:
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		var err error
		if raw, err = json.Marshal(d); err != nil {
			return nil, err
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(emptyDetails), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// hashedEntry fixes the field order of the hashed form.
type hashedEntry struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Timestamp string          `json:"timestamp"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	UserID    string          `json:"userId"`
	Details   json.RawMessage `json:"details"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
}

// EntryHash computes the chain hash of e from its fields and PrevHash.
func EntryHash(e *models.AuditEntry) (string, error) {
	details, err := encodeDetails(e.Details)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(hashedEntry{
		ID:        e.ID,
		Seq:       e.Seq,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    e.Action,
		Resource:  e.Resource,
		UserID:    e.UserID,
		Details:   details,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	})
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0})
	h.Write([]byte(e.PrevHash))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChainError names the first entry that breaks the audit chain.
type ChainError struct {
	Seq    int64
	ID     string
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit entry %d (%s): %s", e.Seq, e.ID, e.Reason)
}

func (e *ChainError) Unwrap() error { return common.ErrTamperDetected }

// Verify recomputes the whole chain.
func (s *AuditService) Verify(ctx context.Context) error {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return err
	}

	var prev *models.AuditEntry
	for i := range entries {
		e := &entries[i]
		if prev == nil {
			if e.PrevHash != "" {
				return &ChainError{Seq: e.Seq, ID: e.ID, Reason: "first entry has a previous hash"}
			}
		} else {
			if e.Seq <= prev.Seq {
				return &ChainError{Seq: e.Seq, ID: e.ID, Reason: "sequence is not increasing"}
			}
			if e.PrevHash != prev.Hash {
				return &ChainError{Seq: e.Seq, ID: e.ID, Reason: "previous hash does not match"}
			}
		}
		want, err := EntryHash(e)
		if err != nil {
			return &ChainError{Seq: e.Seq, ID: e.ID, Reason: err.Error()}
		}
		if want != e.Hash {
			return &ChainError{Seq: e.Seq, ID: e.ID, Reason: "hash does not match content"}
		}
		prev = e
	}
	return nil
}

// Query returns matching entries newest first and the total match count.
func (s *AuditService) Query(ctx context.Context, f models.AuditFilter, limit, offset int) ([]models.AuditEntry, int, error) {
	return s.repo.Query(ctx, f, limit, offset)
}

// Export writes the whole log, oldest first, as indented JSON.
func (s *AuditService) Export(ctx context.Context, w io.Writer) error {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
