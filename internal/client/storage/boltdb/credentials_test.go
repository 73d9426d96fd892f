package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/adminctl/internal/client/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func TestStorage_SaveGetCredentials(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &storage.CredentialRecord{
		EncryptedPayload: "Y2lwaGVydGV4dA==",
		IV:               "bm9uY2U=",
		Salt:             "c2FsdA==",
		ExpiresAt:        1893456000,
	}

	require.NoError(t, s.SaveCredentials(ctx, rec))

	got, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestStorage_SaveCredentials_Replaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := &storage.CredentialRecord{EncryptedPayload: "b25l", IV: "aXYx", Salt: "czE=", ExpiresAt: 1}
	second := &storage.CredentialRecord{EncryptedPayload: "dHdv", IV: "aXYy", Salt: "czI=", ExpiresAt: 2}

	require.NoError(t, s.SaveCredentials(ctx, first))
	require.NoError(t, s.SaveCredentials(ctx, second))

	got, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestStorage_GetCredentials_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetCredentials(context.Background())
	assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)
}

func TestStorage_DeleteCredentials(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &storage.CredentialRecord{EncryptedPayload: "ZGF0YQ==", IV: "aXY=", Salt: "cw==", ExpiresAt: 1}
	require.NoError(t, s.SaveCredentials(ctx, rec))

	require.NoError(t, s.DeleteCredentials(ctx))

	_, err := s.GetCredentials(ctx)
	assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)
}

func TestStorage_DeleteCredentials_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Удаление при пустом хранилище не возвращает ошибку
	require.NoError(t, s.DeleteCredentials(ctx))
	require.NoError(t, s.DeleteCredentials(ctx))
}

func TestStorage_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := New(ctx, dbPath)
	require.NoError(t, err)

	rec := &storage.CredentialRecord{EncryptedPayload: "ZGF0YQ==", IV: "aXY=", Salt: "cw==", ExpiresAt: 42}
	require.NoError(t, s.SaveCredentials(ctx, rec))
	require.NoError(t, s.Close())

	// Повторное открытие того же файла
	s2, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Close()) }()

	got, err := s2.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}
