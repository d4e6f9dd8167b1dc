package auth

import (
	"os"
	"time"
)

const (
	envUsername  = "CHAINBLOCK_USERNAME"
	envUserID    = "CHAINBLOCK_USER_ID"
	envAuthToken = "CHAINBLOCK_AUTH_TOKEN"
	envCSRFToken = "CHAINBLOCK_CSRF_TOKEN"
	envUserAgent = "CHAINBLOCK_USER_AGENT"
)

// EnvironmentStore is a read-only CredentialStore over CHAINBLOCK_* variables
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty username matches it;
// a non-empty one must equal CHAINBLOCK_USERNAME when that is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	authToken := os.Getenv(envAuthToken)
	csrfToken := os.Getenv(envCSRFToken)
	if authToken == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	name := os.Getenv(envUsername)
	if username != "" && name != "" && username != name {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = username
	}
	if name == "" {
		name = "default"
	}

	return &Account{
		Username:     name,
		UserID:       os.Getenv(envUserID),
		AuthToken:    authToken,
		CSRFToken:    csrfToken,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
