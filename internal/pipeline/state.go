package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"transcript-indexer-go/internal/types"
)

// ErrExecutionNotFound is returned when no state exists for an execution name.
var ErrExecutionNotFound = errors.New("execution not found")

// StateStore persists execution state between stages.
type StateStore interface {
	Save(ctx context.Context, exec types.Execution) error
	Load(ctx context.Context, name string) (types.Execution, error)
	// Running lists the names of executions that have not finished.
	Running(ctx context.Context) ([]string, error)
}

// MemoryStateStore keeps executions in process memory.
type MemoryStateStore struct {
	mu    sync.RWMutex
	execs map[string]types.Execution
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{execs: map[string]types.Execution{}}
}

func (s *MemoryStateStore) Save(_ context.Context, exec types.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.Name] = exec
	return nil
}

func (s *MemoryStateStore) Load(_ context.Context, name string) (types.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[name]
	if !ok {
		return types.Execution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, name)
	}
	return exec, nil
}

func (s *MemoryStateStore) Running(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, exec := range s.execs {
		if exec.Status == types.ExecutionRunning {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Redis key prefixes
const (
	keyPrefixExecution = "execution:"        // Execution state as JSON
	keyRunning         = "executions:running" // Set of running execution names
)

// RedisStateStore keeps executions in Redis with a TTL.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Save(ctx context.Context, exec types.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefixExecution+exec.Name, data, s.ttl)
	if exec.Status == types.ExecutionRunning {
		pipe.SAdd(ctx, keyRunning, exec.Name)
	} else {
		pipe.SRem(ctx, keyRunning, exec.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", exec.Name, err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context, name string) (types.Execution, error) {
	data, err := s.client.Get(ctx, keyPrefixExecution+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Execution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, name)
	}
	if err != nil {
		return types.Execution{}, fmt.Errorf("failed to load execution %s: %w", name, err)
	}
	var exec types.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return types.Execution{}, fmt.Errorf("failed to unmarshal execution %s: %w", name, err)
	}
	return exec, nil
}

func (s *RedisStateStore) Running(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, keyRunning).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list running executions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
