// Package backup encodes the dataset into bundles, wraps them in the archive
// layers and stores them in a destination.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/validation"
)

// Encode builds the JSON bundle of snap. Memories keep their stored form.
// Settings values that are not JSON are written as JSON strings.
func Encode(snap *models.Snapshot, at time.Time) ([]byte, error) {
	ms := snap.Memories
	if ms == nil {
		ms = []models.Memory{}
	}
	memoriesJSON, err := json.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode memories: %w", err)
	}

	entries := snap.AuditLog
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	auditJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}

	userConfig := make(map[string]json.RawMessage, len(snap.Settings))
	for k, v := range snap.Settings {
		if json.Valid(v) {
			userConfig[k] = json.RawMessage(v)
			continue
		}
		s, err := json.Marshal(string(v))
		if err != nil {
			return nil, err
		}
		userConfig[k] = s
	}

	return json.MarshalIndent(models.Bundle{
		Version:    models.BundleVersion,
		Timestamp:  at.UTC(),
		Memories:   memoriesJSON,
		AuditLogs:  auditJSON,
		UserConfig: userConfig,
	}, "", "  ")
}

// Staged is a decoded bundle reduced to the items that passed validation.
type Staged struct {
	Timestamp time.Time
	Snapshot  models.Snapshot
	Result    models.RestoreResult
}

type rawBundle struct {
	Version    *int                       `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Memories   json.RawMessage            `json:"memories"`
	AuditLogs  json.RawMessage            `json:"auditLogs"`
	UserConfig map[string]json.RawMessage `json:"userConfig"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrMalformedBundle, fmt.Sprintf(format, args...))
}

// Decode parses a bundle. A bundle that is not JSON, has an unknown version
// or holds a collection of the wrong shape is rejected with
// ErrMalformedBundle. Single memories and settings that fail to parse or
// validate are skipped and counted. The audit log is all or nothing: one bad
// entry drops the whole log, since a chain with gaps no longer verifies.
func Decode(data []byte) (*Staged, error) {
	var raw rawBundle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("%v", err)
	}
	if raw.Version == nil {
		return nil, malformed("missing version")
	}
	if *raw.Version < 1 || *raw.Version > models.BundleVersion {
		return nil, malformed("unsupported version %d", *raw.Version)
	}

	memoryItems, err := items(raw.Memories, "memories")
	if err != nil {
		return nil, err
	}
	auditItems, err := items(raw.AuditLogs, "auditLogs")
	if err != nil {
		return nil, err
	}

	st := &Staged{
		Timestamp: raw.Timestamp,
		Snapshot: models.Snapshot{
			Memories: make([]models.Memory, 0, len(memoryItems)),
			AuditLog: make([]models.AuditEntry, 0, len(auditItems)),
			Settings: make(map[string][]byte, len(raw.UserConfig)),
		},
	}

	seenIDs := make(map[int64]bool)
	for _, item := range memoryItems {
		m, ok := decodeMemory(item)
		if !ok || seenIDs[m.ID] {
			st.Result.Memories.Skipped++
			continue
		}
		seenIDs[m.ID] = true
		st.Snapshot.Memories = append(st.Snapshot.Memories, *m)
		st.Result.Memories.Restored++
	}

	if log, ok := decodeAuditLog(auditItems); ok {
		st.Snapshot.AuditLog = log
		st.Result.Audit.Restored = len(log)
	} else {
		st.Result.Audit.Skipped = len(auditItems)
	}

	for k, v := range raw.UserConfig {
		if k == "" || len(v) == 0 {
			st.Result.Settings.Skipped++
			continue
		}
		if k == models.UserConfigKey {
			var cfg models.UserConfig
			if err := json.Unmarshal(v, &cfg); err != nil || !cfg.EncryptionLevel.Valid() {
				st.Result.Settings.Skipped++
				continue
			}
		}
		st.Snapshot.Settings[k] = []byte(v)
		st.Result.Settings.Restored++
	}

	st.Result.Restored = st.Result.Memories.Restored + st.Result.Audit.Restored + st.Result.Settings.Restored
	st.Result.Skipped = st.Result.Memories.Skipped + st.Result.Audit.Skipped + st.Result.Settings.Skipped
	return st, nil
}

func items(raw json.RawMessage, name string) ([]json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, malformed("%s is not an array", name)
	}
	return out, nil
}

func decodeMemory(item json.RawMessage) (*models.Memory, bool) {
	var m models.Memory
	if err := json.Unmarshal(item, &m); err != nil || m.ID <= 0 {
		return nil, false
	}
	if !validation.Memory(&m).IsValid {
		return nil, false
	}
	if m.CreatedAt.IsZero() {
		return nil, false
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	return &m, true
}

// decodeAuditLog parses every entry and reports false if any entry is
// unreadable, lacks an id or action, or breaks the strictly increasing seq.
func decodeAuditLog(items []json.RawMessage) ([]models.AuditEntry, bool) {
	out := make([]models.AuditEntry, 0, len(items))
	var lastSeq int64
	for _, item := range items {
		var e models.AuditEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, false
		}
		if e.ID == "" || e.Action == "" || e.Seq <= lastSeq {
			return nil, false
		}
		lastSeq = e.Seq
		out = append(out, e)
	}
	return out, true
}
