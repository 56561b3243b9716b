//go:build !integration

// File: internal/infra/redis/fake_client_test.go
package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// fakeClient is an in-memory stand-in for a redis server, just enough for
// the limiter and the tap guard.
type fakeClient struct {
	mu      sync.Mutex
	values  map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
	failAll bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		values:  make(map[string]string),
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

var errFakeDown = errors.New("fake redis down")

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errFakeDown
	}
	f.values[key] = value.(string)
	f.expires[key] = expiration
	return nil
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, errFakeDown
	}
	if _, held := f.values[key]; held {
		return false, nil
	}
	f.values[key] = value.(string)
	f.expires[key] = expiration
	return true, nil
}

func (f *fakeClient) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeClient) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errFakeDown
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeClient) Expire(_ context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errFakeDown
	}
	f.expires[key] = expiration
	return nil
}

func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
		delete(f.counts, k)
		delete(f.expires, k)
	}
	return nil
}

// Eval understands only the compare-and-delete unlock script.
func (f *fakeClient) Eval(_ context.Context, _ *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errFakeDown
	}
	if len(keys) != 1 || len(args) != 1 {
		return nil, errors.New("unexpected eval shape")
	}
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeClient) Close() error { return nil }
