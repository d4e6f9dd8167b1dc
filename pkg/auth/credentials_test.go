package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func account(name string) *Account {
	return &Account{
		Username:  name,
		UserID:    name + "-id",
		AuthToken: name + "_auth_token_0123456789",
		CSRFToken: name + "_csrf_token_0123456789",
		UserAgent: "TestAgent/1.0",
	}
}

func TestManagerLifecycle(t *testing.T) {
	store := NewMemoryStore()
	m := NewManagerWithStores(store)

	require.NoError(t, m.Store(account("bob")))
	require.NoError(t, m.Store(account("alice")))

	got, err := m.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-id", got.UserID)
	assert.False(t, got.LastModified.IsZero())

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	def, err := m.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "alice", def.Username)

	require.NoError(t, m.Delete("alice"))
	_, err = m.Retrieve("alice")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, m.Delete("alice"), ErrCredentialsNotFound)

	require.NoError(t, m.DeleteAll())
	assert.Equal(t, 0, store.Len())
}

func TestManagerStoreValidation(t *testing.T) {
	m := NewManagerWithStores(NewMemoryStore())

	tests := []struct {
		name   string
		modify func(a *Account)
	}{
		{"no username", func(a *Account) { a.Username = "" }},
		{"no auth token", func(a *Account) { a.AuthToken = "" }},
		{"no csrf token", func(a *Account) { a.CSRFToken = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := account("x")
			tt.modify(a)
			assert.Error(t, m.Store(a))
		})
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keychain locked")
	broken.ListError = errors.New("keychain locked")
	fallback := NewMemoryStore()
	m := NewManagerWithStores(broken, fallback)

	require.NoError(t, m.Store(account("carol")))
	assert.Equal(t, 0, broken.Len())
	assert.True(t, fallback.Exists("carol"))

	list, err := m.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSanitizeAccount(t *testing.T) {
	a := account("dave")
	s := SanitizeAccount(a)

	assert.Equal(t, "dave", s.Username)
	assert.NotEqual(t, a.AuthToken, s.AuthToken)
	assert.Equal(t, "dave...6789", s.AuthToken)
	assert.Equal(t, "********", maskString("short"))
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store := NewEncryptedFileStoreWithPassphrase(path, "test passphrase")

	_, err := store.Retrieve("erin")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(account("erin")))
	require.NoError(t, store.Store(account("frank")))

	got, err := store.Retrieve("erin")
	require.NoError(t, err)
	assert.Equal(t, account("erin").AuthToken, got.AuthToken)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("erin_auth_token")))
	assert.False(t, bytes.Contains(content, []byte("erin_csrf_token")))

	wrong := NewEncryptedFileStoreWithPassphrase(path, "other passphrase")
	_, err = wrong.Retrieve("erin")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete("erin"))
	require.NoError(t, store.Delete("frank"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEncryptedFileStorePassphraseFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(passphraseEnv, "from env")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(account("gina")))

	again := NewEncryptedFileStoreWithPassphrase(filepath.Join(dir, "credentials.enc"), "from env")
	assert.True(t, again.Exists("gina"))
	_, err = os.Stat(filepath.Join(dir, ".passphrase"))
	assert.True(t, os.IsNotExist(err))
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(envAuthToken, "env_auth")
	t.Setenv(envCSRFToken, "env_csrf")
	t.Setenv(envUsername, "henry")
	t.Setenv(envUserID, "42")

	got, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "henry", got.Username)
	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, "env_auth", got.AuthToken)

	_, err = store.Retrieve("someone-else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	assert.ErrorIs(t, store.Store(account("x")), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("henry"), ErrStoreUnavailable)

	m := NewManagerWithStores(NewMemoryStore(*account("alice")), store)
	def, err := m.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "henry", def.Username)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(account("ivy")))
	require.NoError(t, store.Store(account("jack")))
	assert.True(t, store.Exists("ivy"))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ivy", list[0].Username)

	require.NoError(t, store.Delete("ivy"))
	assert.ErrorIs(t, store.Delete("ivy"), ErrCredentialsNotFound)

	list, err = store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "jack", list[0].Username)
}

func TestWriteCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteCookieGuide(&buf)
	assert.Contains(t, buf.String(), "auth_token")
	assert.Contains(t, buf.String(), "ct0")
}
