package limiter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chainblock/pkg/config"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps limiter state in process
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key], nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, n int, at time.Time, window time.Duration) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := advance(s.states[key], n, at, window)
	s.states[key] = st
	return st, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// FileStore keeps every executor's state in one JSON file, rewritten
// atomically on each change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path, or at DefaultPath when path is empty
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create limiter directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return State{}, err
	}
	return states[key], nil
}

func (s *FileStore) Incr(_ context.Context, key string, n int, at time.Time, window time.Duration) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return State{}, err
	}
	st := advance(states[key], n, at, window)
	states[key] = st
	if err := s.write(states); err != nil {
		return State{}, err
	}
	return st, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := states[key]; !ok {
		return nil
	}
	delete(states, key)
	return s.write(states)
}

func (s *FileStore) read() (map[string]State, error) {
	states := make(map[string]State)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return states, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read limiter file: %w", err)
	}
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("failed to decode limiter file: %w", err)
	}
	return states, nil
}

func (s *FileStore) write(states map[string]State) error {
	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary limiter file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(states); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode limiter state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync limiter file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close limiter file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace limiter file: %w", err)
	}
	return nil
}

// DefaultPath returns the per-OS data location of the limiter file
func DefaultPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "limiter.json"), nil
}

var redisLimiterPrefix = "chainblock/limiter/"

// RedisStore shares limiter state between processes. Each executor is a hash
// of count and last increment that expires with the window, so an idle
// executor resets without a read.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects to redisURL and checks the connection
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	vals, err := s.Client.HGetAll(ctx, redisLimiterPrefix+key).Result()
	if err == redis.Nil {
		return State{}, nil
	} else if err != nil {
		return State{}, err
	}
	if len(vals) == 0 {
		return State{}, nil
	}

	var st State
	if _, err := fmt.Sscan(vals["count"], &st.Count); err != nil {
		return State{}, fmt.Errorf("corrupt limiter count: %w", err)
	}
	if last := vals["last"]; last != "" {
		st.LastIncrement, err = time.Parse(time.RFC3339Nano, last)
		if err != nil {
			return State{}, fmt.Errorf("corrupt limiter timestamp: %w", err)
		}
	}
	return st, nil
}

// Incr relies on the key expiring with the window, so the count in redis is
// always the live one.
func (s *RedisStore) Incr(ctx context.Context, key string, n int, at time.Time, window time.Duration) (State, error) {
	k := redisLimiterPrefix + key
	multi := s.Client.TxPipeline()
	count := multi.HIncrBy(ctx, k, "count", int64(n))
	multi.HSet(ctx, k, "last", at.UTC().Format(time.RFC3339Nano))
	if window > 0 {
		multi.Expire(ctx, k, window)
	}
	if _, err := multi.Exec(ctx); err != nil {
		return State{}, err
	}
	return State{Count: int(count.Val()), LastIncrement: at}, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, redisLimiterPrefix+key).Err()
}

// Close releases the redis connection
func (s *RedisStore) Close() error {
	return s.Client.Close()
}

// OpenStore builds the store selected by cfg
func OpenStore(ctx context.Context, cfg config.LimiterConfig) (Store, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	case "file", "":
		return NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown limiter store %q", cfg.Store)
	}
}
