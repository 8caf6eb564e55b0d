package backup

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Memories: []models.Memory{
			{
				ID: 1, Title: "Playa", Type: models.MemoryTypeText,
				Content: models.PlainContent{Text: "arena"}, Tags: []string{"verano"},
				PrivacyLevel: 1, EncryptionLevel: models.EncryptionNone, CreatedAt: at, UpdatedAt: at,
			},
			{
				ID: 2, Title: models.SealedTitle, Type: models.MemoryTypeText,
				Content: models.SealedContent{Envelope: &models.Envelope{
					Algorithm: models.AlgAESGCMArgon2id, Salt: []byte("s"), IV: []byte("i"), Ciphertext: []byte("c"),
				}},
				PrivacyLevel: 4, EncryptionLevel: models.EncryptionAdvanced, CreatedAt: at, UpdatedAt: at,
			},
		},
		AuditLog: []models.AuditEntry{
			{ID: "a", Seq: 1, Timestamp: at, Action: models.ActionKeySet, Resource: "session", UserID: "local", Details: json.RawMessage(`{}`), Hash: "h1"},
		},
		Settings: map[string][]byte{
			models.UserConfigKey: []byte(`{"autoEncrypt":true,"encryptionLevel":"basic","auditRetention":30,"sessionTimeout":"5m"}`),
			"raw":                []byte("not json"),
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	data, err := Encode(sampleSnapshot(), at)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	for _, k := range []string{"version", "timestamp", "memories", "auditLogs", "userConfig"} {
		assert.Contains(t, top, k)
	}

	st, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, st.Timestamp.Equal(at))
	assert.Zero(t, st.Result.Skipped)
	assert.Equal(t, 2, st.Result.Memories.Restored)
	assert.Equal(t, 1, st.Result.Audit.Restored)
	assert.Equal(t, 2, st.Result.Settings.Restored)
	assert.Equal(t, 5, st.Result.Restored)

	require.Len(t, st.Snapshot.Memories, 2)
	assert.False(t, st.Snapshot.Memories[0].IsEncrypted())
	assert.True(t, st.Snapshot.Memories[1].IsEncrypted())
	assert.Equal(t, []byte(`"not json"`), st.Snapshot.Settings["raw"])
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"no version", `{"memories":[]}`},
		{"future version", `{"version":99,"memories":[]}`},
		{"memories not array", `{"version":1,"memories":{"id":1}}`},
		{"audit not array", `{"version":1,"memories":[],"auditLogs":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.ErrorIs(t, err, common.ErrMalformedBundle)
		})
	}
}

func TestDecode_SkipsInvalidItems(t *testing.T) {
	data := `{
		"version": 1,
		"timestamp": "2024-05-01T10:00:00Z",
		"memories": [
			{"id": 1, "title": "ok", "content": "texto", "type": "text", "createdAt": "2024-05-01T10:00:00Z"},
			{"id": 1, "title": "dup", "content": "texto", "type": "text", "createdAt": "2024-05-01T10:00:00Z"},
			{"id": 2, "title": "", "content": "texto", "type": "text", "createdAt": "2024-05-01T10:00:00Z"},
			{"id": 3, "title": "bad type", "content": "x", "type": "poem", "createdAt": "2024-05-01T10:00:00Z"},
			"garbage"
		],
		"auditLogs": [
			{"id": "a", "seq": 1, "action": "key.set", "timestamp": "2024-05-01T10:00:00Z"},
			{"seq": 2, "action": "key.set"}
		],
		"userConfig": {"user_config": "not an object"}
	}`

	st, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, models.CollectionCounts{Restored: 1, Skipped: 4}, st.Result.Memories)
	assert.Equal(t, models.CollectionCounts{Restored: 0, Skipped: 2}, st.Result.Audit)
	assert.Equal(t, models.CollectionCounts{Restored: 0, Skipped: 1}, st.Result.Settings)
	assert.Equal(t, 7, st.Result.Skipped)
	require.Len(t, st.Snapshot.Memories, 1)
	assert.Equal(t, "ok", st.Snapshot.Memories[0].Title)
	assert.Empty(t, st.Snapshot.AuditLog)
}

func TestDecode_AuditLogIsAllOrNothing(t *testing.T) {
	entry := func(id string, seq int, action string) string {
		return fmt.Sprintf(`{"id":%q,"seq":%d,"action":%q,"timestamp":"2024-05-01T10:00:00Z"}`, id, seq, action)
	}
	bundle := func(entries ...string) []byte {
		return []byte(`{"version":1,"memories":[],"auditLogs":[` + strings.Join(entries, ",") + `]}`)
	}

	tests := []struct {
		name string
		data []byte
		want models.CollectionCounts
	}{
		{"intact", bundle(entry("a", 1, "key.set"), entry("b", 2, "memory.create")), models.CollectionCounts{Restored: 2}},
		{"missing action", bundle(entry("a", 1, "key.set"), entry("b", 2, ""), entry("c", 3, "memory.create")), models.CollectionCounts{Skipped: 3}},
		{"duplicate seq", bundle(entry("a", 1, "key.set"), entry("b", 1, "memory.create")), models.CollectionCounts{Skipped: 2}},
		{"out of order", bundle(entry("a", 2, "key.set"), entry("b", 1, "memory.create")), models.CollectionCounts{Skipped: 2}},
		{"unreadable", bundle(entry("a", 1, "key.set"), `"garbage"`), models.CollectionCounts{Skipped: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Result.Audit)
			assert.Len(t, st.Snapshot.AuditLog, tt.want.Restored)
		})
	}
}
