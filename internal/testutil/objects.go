// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sort"
	"sync"
)

// ErrStoreDown is returned by MemoryObjectStore when FailPut or FailDelete is set.
var ErrStoreDown = errors.New("object store unavailable")

// StoredObject is one object held by MemoryObjectStore.
type StoredObject struct {
	Body        []byte
	ContentType string
}

// MemoryObjectStore is an in-memory storage.ObjectStore for tests.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject

	// FailPut makes Put fail once the given number of puts succeeded; -1 disables it.
	FailPut    int
	FailDelete bool
	puts       int
}

// NewMemoryObjectStore creates an empty store that never fails.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]StoredObject), FailPut: -1}
}

// Put stores body under key and returns a fake public URL.
func (s *MemoryObjectStore) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut >= 0 && s.puts >= s.FailPut {
		return "", ErrStoreDown
	}
	s.puts++
	s.objects[key] = StoredObject{Body: append([]byte(nil), body...), ContentType: contentType}
	return "https://objects.test/" + key, nil
}

// Delete removes key; missing keys are ignored.
func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return ErrStoreDown
	}
	delete(s.objects, key)
	return nil
}

// Get returns the object stored under key.
func (s *MemoryObjectStore) Get(key string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists the stored keys in order.
func (s *MemoryObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
