package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StateMachine(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	ctx := context.Background()

	assert.False(t, s.HasMasterKey(ctx))
	assert.False(t, s.IsUnlocked())
	assert.False(t, s.UnlockWithPassword(ctx, testKey), "nothing to unlock yet")
	_, err := s.Key()
	require.ErrorIs(t, err, common.ErrMissingKey)

	require.NoError(t, s.SetMasterKey(ctx, testKey))
	assert.True(t, s.HasMasterKey(ctx))
	assert.False(t, s.IsUnlocked(), "setting a key does not unlock")

	assert.False(t, s.UnlockWithPassword(ctx, "otra-clave"))
	assert.False(t, s.UnlockWithPassword(ctx, ""))
	assert.True(t, s.UnlockWithPassword(ctx, testKey))
	key, err := s.Key()
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	s.Lock()
	assert.False(t, s.IsUnlocked())
	assert.True(t, s.HasMasterKey(ctx), "lock keeps the verifier")

	require.NoError(t, s.ClearMasterKey(ctx))
	assert.False(t, s.HasMasterKey(ctx))
	assert.False(t, s.UnlockWithPassword(ctx, testKey))
	_, err = s.Key()
	require.ErrorIs(t, err, common.ErrMissingKey)

	assert.Equal(t, []string{models.ActionKeySet, models.ActionKeyCleared}, auditActions(t, env.audit))
}

func TestSession_UnlockMatchesLastKeyOnly(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	ctx := context.Background()

	require.NoError(t, s.SetMasterKey(ctx, "primera-Clave1"))
	require.True(t, s.UnlockWithPassword(ctx, "primera-Clave1"))

	require.NoError(t, s.SetMasterKey(ctx, "segunda-Clave2"))
	assert.False(t, s.IsUnlocked(), "replacing the key locks the session")
	assert.False(t, s.UnlockWithPassword(ctx, "primera-Clave1"))
	assert.True(t, s.UnlockWithPassword(ctx, "segunda-Clave2"))
}

func TestSession_SetMasterKeyRejectsEmpty(t *testing.T) {
	env := newTestEnv(t)
	require.ErrorIs(t, env.session.SetMasterKey(context.Background(), ""), common.ErrMissingKey)
	assert.False(t, env.session.HasMasterKey(context.Background()))
}

func TestSession_DamagedVerifier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.manager.Settings().Set(ctx, VerifierKey, []byte("not an envelope")))
	assert.False(t, env.session.UnlockWithPassword(ctx, testKey))
}

func TestSession_AutoLock(t *testing.T) {
	env := newTestEnv(t, WithSessionTimeout(30*time.Millisecond))
	env.unlock(t)

	require.Eventually(t, func() bool { return !env.session.IsUnlocked() }, 2*time.Second, 5*time.Millisecond)
	_, err := env.session.Key()
	require.ErrorIs(t, err, common.ErrMissingKey)
	assert.True(t, env.session.HasMasterKey(context.Background()))
}

func TestSession_ZeroTimeoutNeverLocks(t *testing.T) {
	env := newTestEnv(t, WithSessionTimeout(0))
	env.unlock(t)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, env.session.IsUnlocked())
}

func TestSession_AutoEncryptPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.False(t, env.session.AutoEncrypt())
	require.NoError(t, env.session.SetAutoEncrypt(ctx, true))
	assert.True(t, env.session.AutoEncrypt())

	_, err := env.config.Update(ctx, func(c *models.UserConfig) {
		c.EncryptionLevel = models.EncryptionBasic
		c.SessionTimeout.Duration = time.Hour
	})
	require.NoError(t, err)

	fresh := NewSession(env.manager.Settings(), env.config, logging.NewNop())
	require.NoError(t, fresh.Load(ctx))
	assert.True(t, fresh.AutoEncrypt())
	assert.Equal(t, models.EncryptionBasic, fresh.EncryptionLevel())
	assert.Equal(t, time.Hour, fresh.timeout)
}
