package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dmitrijs2005/almacen/internal/backup"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/migrations"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "Clave-Segura-1"

type testApp struct {
	*App
	buf *bytes.Buffer
}

// newTestApp builds an App over an in-memory database. A nil dest selects
// the download destination.
func newTestApp(t *testing.T, dest backup.Destination) *testApp {
	t.Helper()
	ctx := context.Background()

	origTerm := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = origTerm })

	db, err := dbx.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, db))

	cfg := &config.Client{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.CacheSize = 100
	if dest == nil {
		cfg.BackupDestination = config.BackupDownload
	}
	cfg.Resolve()

	a, err := newApp(ctx, cfg, logging.NewNop(), repomanager.NewSQLiteRepositoryManager(db), dest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ta := &testApp{App: a, buf: &bytes.Buffer{}}
	a.out = ta.buf
	a.in = bufio.NewScanner(strings.NewReader(""))
	return ta
}

// feed queues answers for the prompts of the next command.
func (a *testApp) feed(lines ...string) {
	a.in = bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func (a *testApp) output() string {
	s := a.buf.String()
	a.buf.Reset()
	return s
}

func (a *testApp) setKey(t *testing.T) {
	t.Helper()
	a.feed(testKey, testKey)
	require.NoError(t, a.SetKey(context.Background(), nil))
	a.feed(testKey)
	require.NoError(t, a.Unlock(context.Background(), nil))
	a.output()
}

// addText runs the add command for a text memory and returns its id.
func (a *testApp) addText(t *testing.T, title, text, tags, level string) int64 {
	t.Helper()
	a.feed(title, text, "", tags, level, "")
	require.NoError(t, a.Add(context.Background(), nil))
	ms := a.memories.List(context.Background(), 1, 0)
	require.Len(t, ms, 1)
	a.output()
	return ms[0].ID
}

func TestApp_KeyLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	a.feed("x")
	require.ErrorIs(t, a.Unlock(ctx, nil), common.ErrMissingKey)

	a.feed(testKey, testKey)
	require.NoError(t, a.SetKey(ctx, nil))
	assert.False(t, a.isUnlocked())

	a.feed("Otra-Clave-99")
	require.ErrorIs(t, a.Unlock(ctx, nil), errUnlockFailed)

	a.feed(testKey)
	require.NoError(t, a.Unlock(ctx, nil))
	assert.True(t, a.isUnlocked())
	assert.Contains(t, a.status(), "unlocked")

	require.NoError(t, a.Lock(ctx, nil))
	assert.False(t, a.isUnlocked())

	a.feed("n")
	require.NoError(t, a.Forget(ctx, nil))
	assert.True(t, a.session.HasMasterKey(ctx))

	a.feed("y")
	require.NoError(t, a.Forget(ctx, nil))
	assert.False(t, a.session.HasMasterKey(ctx))
}

func TestApp_SetKeyRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	a.feed("abc")
	err := a.SetKey(ctx, nil)
	require.ErrorIs(t, err, common.ErrValidation)

	a.feed(testKey, testKey+"x")
	err = a.SetKey(ctx, nil)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "do not match")
	assert.False(t, a.session.HasMasterKey(ctx))
}

func TestApp_GenKey(t *testing.T) {
	a := newTestApp(t, nil)

	require.NoError(t, a.GenKey(context.Background(), nil))
	assert.True(t, a.isUnlocked())
	assert.Contains(t, a.output(), "Generated master key: ")
}

func TestApp_AutoEncrypt(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	require.NoError(t, a.AutoEncrypt(ctx, []string{"on"}))
	assert.True(t, a.session.AutoEncrypt())

	a.output()
	require.NoError(t, a.AutoEncrypt(ctx, nil))
	assert.Contains(t, a.output(), "Auto-encrypt is on")

	require.ErrorIs(t, a.AutoEncrypt(ctx, []string{"maybe"}), common.ErrValidation)
	require.NoError(t, a.AutoEncrypt(ctx, []string{"off"}))
	assert.False(t, a.session.AutoEncrypt())
}

func TestApp_MemoryCommands(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	id := a.addText(t, "Primer día", "Llegamos a la playa", "viaje, familia", "")

	require.NoError(t, a.List(ctx, nil))
	out := a.output()
	assert.Contains(t, out, "Primer día")
	assert.Contains(t, out, "#viaje #familia")

	require.NoError(t, a.Show(ctx, []string{strconv.FormatInt(id, 10)}))
	out = a.output()
	assert.Contains(t, out, "Llegamos a la playa")
	assert.Contains(t, out, "encryption none")

	require.NoError(t, a.Tags(ctx, nil))
	assert.Contains(t, a.output(), "familia")

	a.feed("y")
	require.NoError(t, a.Delete(ctx, []string{strconv.FormatInt(id, 10)}))
	a.feed("y")
	require.ErrorIs(t, a.Delete(ctx, []string{strconv.FormatInt(id, 10)}), common.ErrNotFound)

	require.NoError(t, a.List(ctx, nil))
	assert.Contains(t, a.output(), "No memories.")
}

func TestApp_AddValidation(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	require.ErrorIs(t, a.Add(ctx, []string{"poem"}), common.ErrValidation)

	a.feed("", "text", "", "", "", "")
	err := a.Add(ctx, nil)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, describe(err), "title")

	a.feed("t", "text", "", "", "", "x")
	require.ErrorIs(t, a.Add(ctx, nil), common.ErrValidation)

	a.feed("t", "text", "", "", "advanced", "")
	require.ErrorIs(t, a.Add(ctx, nil), common.ErrMissingKey)

	assert.Empty(t, a.memories.List(ctx, 0, 0))
}

func TestApp_EncryptedMemory(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	a.setKey(t)

	id := a.addText(t, "Secreto", "solo para mí", "", "advanced")
	stored, ok := a.memories.Get(ctx, id)
	require.True(t, ok)
	assert.True(t, stored.IsEncrypted())
	assert.Equal(t, models.SealedTitle, stored.Title)

	require.NoError(t, a.List(ctx, nil))
	assert.Contains(t, a.output(), "(encrypted)")

	require.NoError(t, a.Lock(ctx, nil))
	a.feed(testKey)
	require.NoError(t, a.Show(ctx, []string{strconv.FormatInt(id, 10)}))
	assert.Contains(t, a.output(), "solo para mí")

	a.feed("wrong-password")
	err := a.Show(ctx, []string{strconv.FormatInt(id, 10)})
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestApp_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, backup.NewDirDestination(filepath.Join(t.TempDir(), "backups")))
	a.setKey(t)

	id := a.addText(t, "Cumpleaños", "pastel", "fiesta", "")

	require.NoError(t, a.Backup(ctx, []string{"-compress", "-encrypt"}))
	list, err := a.backups.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	backupID := list[0].ID
	assert.True(t, list[0].Encrypted)

	a.output()
	require.NoError(t, a.Backups(ctx, nil))
	assert.Contains(t, a.output(), backupID)

	a.feed("y")
	require.NoError(t, a.Delete(ctx, []string{strconv.FormatInt(id, 10)}))
	require.NoError(t, a.Lock(ctx, nil))

	a.feed("n")
	require.NoError(t, a.Restore(ctx, []string{backupID}))
	assert.Empty(t, a.memories.List(ctx, 0, 0))

	// locked session: the backup password is asked for
	a.feed("y", testKey)
	require.NoError(t, a.Restore(ctx, []string{backupID}))
	assert.Contains(t, a.output(), "Restored")

	m, ok := a.memories.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "Cumpleaños", m.Title)
	assert.False(t, a.isUnlocked())

	a.feed("y")
	require.NoError(t, a.RemoveBackup(ctx, []string{backupID}))
	list, err = a.backups.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.ErrorIs(t, a.Restore(ctx, nil), common.ErrValidation)
}

func TestApp_DownloadBackup(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	dir := t.TempDir()
	orig := downloadDir
	downloadDir = dir
	t.Cleanup(func() { downloadDir = orig })

	id := a.addText(t, "Viaje", "montañas", "", "")

	require.NoError(t, a.Backup(ctx, []string{"-compress"}))
	assert.Contains(t, a.output(), "Saved to ")

	files, err := filepath.Glob(filepath.Join(dir, "almacen-*.bak"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.ErrorIs(t, a.Backups(ctx, nil), common.ErrUnsupported)
	require.ErrorIs(t, a.RemoveBackup(ctx, []string{"x"}), common.ErrUnsupported)
	require.ErrorIs(t, a.Restore(ctx, []string{"some-id"}), common.ErrNotFound)

	a.feed("y")
	require.NoError(t, a.Delete(ctx, []string{strconv.FormatInt(id, 10)}))

	a.feed("y")
	require.NoError(t, a.Restore(ctx, []string{files[0]}))
	_, ok := a.memories.Get(ctx, id)
	assert.True(t, ok)
}

func TestApp_AuditCommands(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	a.setKey(t)
	a.addText(t, "Uno", "contenido", "", "")

	require.NoError(t, a.Audit(ctx, []string{"-action", models.ActionMemoryCreate}))
	out := a.output()
	assert.Contains(t, out, models.ActionMemoryCreate)
	assert.NotContains(t, out, models.ActionKeySet)
	assert.Contains(t, out, "1 of 1 entries")

	require.NoError(t, a.Verify(ctx, nil))
	assert.Contains(t, a.output(), "intact")

	path := filepath.Join(t.TempDir(), "audit.json")
	require.NoError(t, a.Audit(ctx, []string{"-export", path}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionKeySet, entries[0].Action)

	require.ErrorIs(t, a.Audit(ctx, []string{"-bogus"}), common.ErrValidation)
}
