package auth

import "sync"

// MemoryStore is an in-process CredentialStore for tests and dry runs.
// Setting one of the error fields makes the matching method fail.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	StoreError  error
	ListError   error
	DeleteError error
}

func NewMemoryStore(accounts ...Account) *MemoryStore {
	m := &MemoryStore{accounts: make(map[string]Account)}
	for _, a := range accounts {
		m.accounts[a.Username] = a
	}
	return m
}

func (m *MemoryStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *MemoryStore) Retrieve(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &a, nil
}

func (m *MemoryStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		a := a
		result = append(result, &a)
	}
	return result, nil
}

func (m *MemoryStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *MemoryStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}

// Len returns the number of stored accounts
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
