package models

import (
	"encoding/json"
	"time"
)

// BundleVersion is written into every bundle; restore accepts versions up to
// and including it.
const BundleVersion = 1

// Bundle is the serialized export of the whole local dataset.
type Bundle struct {
	Version    int                        `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Memories   json.RawMessage            `json:"memories"`
	AuditLogs  json.RawMessage            `json:"auditLogs"`
	UserConfig map[string]json.RawMessage `json:"userConfig"`
}

// Snapshot is a fully parsed dataset, used both to build bundles and to
// replace every collection at once on restore.
type Snapshot struct {
	Memories []Memory
	AuditLog []AuditEntry
	Settings map[string][]byte
}

// BackupStatus is the outcome of a backup run.
type BackupStatus string

const (
	BackupCompleted BackupStatus = "completed"
	BackupFailed    BackupStatus = "failed"
)

// BackupInfo describes a stored backup artifact.
type BackupInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Location      string       `json:"location"`
	CreatedAt     time.Time    `json:"createdAt"`
	Size          int64        `json:"size"`
	Status        BackupStatus `json:"status"`
	Checksum      string       `json:"checksum,omitempty"`
	ItemCount     int          `json:"itemCount"`
	Encrypted     bool         `json:"encrypted"`
	Compressed    bool         `json:"compressed"`
	IncludesMedia bool         `json:"includesMedia"`
}

// CollectionCounts is the restore tally for one collection.
type CollectionCounts struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Restored int              `json:"restored"`
	Skipped  int              `json:"skipped"`
	Memories CollectionCounts `json:"memories"`
	Audit    CollectionCounts `json:"auditLogs"`
	Settings CollectionCounts `json:"userConfig"`
	Media    int              `json:"media"`
}
