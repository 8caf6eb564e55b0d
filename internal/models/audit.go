package models

import (
	"encoding/json"
	"time"
)

// Audit actions emitted by the services.
const (
	ActionMemoryCreate  = "memory.create"
	ActionMemoryUpdate  = "memory.update"
	ActionMemoryDelete  = "memory.delete"
	ActionKeySet        = "key.set"
	ActionKeyCleared    = "key.clear"
	ActionBackupCreate  = "backup.create"
	ActionBackupRestore = "backup.restore"
	ActionBackupDelete  = "backup.delete"
)

// AuditEntry is one record of the append-only audit log.
type AuditEntry struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	UserID    string          `json:"userId"`
	Details   json.RawMessage `json:"details,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	PrevHash  string          `json:"prevHash"`
	Hash      string          `json:"hash"`
}

// AuditFilter narrows an audit query. Zero fields match everything; set
// fields combine with AND.
type AuditFilter struct {
	Action   string    `json:"action,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	DateFrom time.Time `json:"dateFrom,omitempty"`
	DateTo   time.Time `json:"dateTo,omitempty"`
}

// Match reports whether e satisfies the filter. DateFrom and DateTo are
// inclusive.
func (f AuditFilter) Match(e *AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if !f.DateFrom.IsZero() && e.Timestamp.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && e.Timestamp.After(f.DateTo) {
		return false
	}
	return true
}
