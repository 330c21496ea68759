package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumenmedia/dvdstore/internal/cache"
	"github.com/lumenmedia/dvdstore/internal/catalog"
	"github.com/lumenmedia/dvdstore/internal/queue"
	"github.com/lumenmedia/dvdstore/internal/replica"
	"github.com/lumenmedia/dvdstore/internal/replication"
)

var serverClock = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

// recordingCache wraps the in-memory cache and counts write traffic per key
// so tests can assert which keys a request touched. Setting the error fields
// makes the corresponding operations fail, simulating a cache client outage.
type recordingCache struct {
	inner         *cache.MemoryCache
	mu            sync.Mutex
	sets          map[string]int
	invalidates   map[string]int
	getErr        error
	setErr        error
	invalidateErr error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		inner:       cache.NewMemoryCache(),
		sets:        make(map[string]int),
		invalidates: make(map[string]int),
	}
}

func (c *recordingCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	failure := c.getErr
	c.mu.Unlock()
	if failure != nil {
		return "", false, failure
	}
	return c.inner.Get(ctx, key)
}

func (c *recordingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.sets[key]++
	failure := c.setErr
	c.mu.Unlock()
	if failure != nil {
		return failure
	}
	return c.inner.Set(ctx, key, value, ttl)
}

func (c *recordingCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	c.invalidates[key]++
	failure := c.invalidateErr
	c.mu.Unlock()
	if failure != nil {
		return failure
	}
	return c.inner.Invalidate(ctx, key)
}

func (c *recordingCache) failWith(err error) {
	c.mu.Lock()
	c.getErr = err
	c.setErr = err
	c.invalidateErr = err
	c.mu.Unlock()
}

func (c *recordingCache) writes(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key] + c.invalidates[key]
}

func (c *recordingCache) setCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

type testEnv struct {
	handler http.Handler
	db      *gorm.DB
	broker  *queue.MemoryBroker
	store   *replica.MemoryStore
	cache   *recordingCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	broker := queue.NewMemoryBroker(replication.QueueDVDs, replication.QueueDirectors)
	return newTestEnvWithBroker(t, broker)
}

// newTestEnvWithBroker lets tests inject a broker, for example one with no
// declared queues so every publish fails.
func newTestEnvWithBroker(t *testing.T, broker *queue.MemoryBroker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&catalog.Director{}, &catalog.DVD{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db, Clock: serverClock})
	if err != nil {
		t.Fatalf("failed to build catalog service: %v", err)
	}

	t.Cleanup(func() { broker.Close() }) //nolint:errcheck

	publisher, err := replication.NewPublisher(replication.PublisherConfig{Broker: broker})
	if err != nil {
		t.Fatalf("failed to build publisher: %v", err)
	}

	readCache := newRecordingCache()
	handler, err := NewHTTPHandler(Dependencies{
		Catalog:   catalogService,
		Publisher: publisher,
		Cache:     readCache,
		CacheTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testEnv{
		handler: handler,
		db:      db,
		broker:  broker,
		store:   replica.NewMemoryStore(),
		cache:   readCache,
	}
}

// startConsumers runs the two replication loops against the env's replica
// store until the test ends.
func (env *testEnv) startConsumers(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dvdApplier, err := replication.NewDVDApplier(env.store, serverClock, nil)
	if err != nil {
		t.Fatalf("failed to build dvd applier: %v", err)
	}
	directorApplier, err := replication.NewDirectorApplier(env.store, serverClock, nil)
	if err != nil {
		t.Fatalf("failed to build director applier: %v", err)
	}

	for _, cfg := range []replication.ConsumerConfig{
		{Source: env.broker, QueueName: replication.QueueDVDs, Apply: dvdApplier.Apply},
		{Source: env.broker, QueueName: replication.QueueDirectors, Apply: directorApplier.Apply},
	} {
		consumer, err := replication.NewConsumer(cfg)
		if err != nil {
			t.Fatalf("failed to build consumer: %v", err)
		}
		go consumer.Run(ctx) //nolint:errcheck
	}
}

func (env *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func (env *testEnv) queueDepths() int {
	return env.broker.Depth(replication.QueueDVDs) + env.broker.Depth(replication.QueueDirectors)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
