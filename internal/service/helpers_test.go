package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
// A single connection serializes transactions the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (m *memoryBlobStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memoryBlobStore) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryBlobStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?op=get&ttl=%s", key, ttl), nil
}

func (m *memoryBlobStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?op=put&type=%s&ttl=%s", key, contentType, ttl), nil
}

type countingGenerator struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, _ string) ([]byte, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		if err := sleepContext(ctx, g.delay); err != nil {
			return nil, err
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return []byte("\x89PNG fake"), nil
}

// scriptedChat replays canned JSON replies and records the prompts it saw
type scriptedChat struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests [][]ChatMessage
}

func (c *scriptedChat) CompleteJSON(_ context.Context, _ string, messages []ChatMessage, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, messages)
	if c.err != nil {
		return c.err
	}
	if len(c.replies) == 0 {
		return fmt.Errorf("no scripted reply left")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return json.Unmarshal([]byte(reply), out)
}

func (c *scriptedChat) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
