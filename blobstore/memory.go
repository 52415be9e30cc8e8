package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// MemStore holds blobs in memory with the same chunking behaviour as the
// GridFS adapter, so progress callbacks fire the same way in tests.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string

	// FailPut, when set, makes every upload fail with this error.
	FailPut error
}

func NewMemStore() *MemStore {
	return &MemStore{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (s *MemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error) {
	if s.FailPut != nil {
		return "", s.FailPut
	}
	var out bytes.Buffer
	buf := make([]byte, uploadChunkSize)
	var sent int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			sent += int64(n)
			if onProgress != nil && size > 0 {
				onProgress(float64(sent) / float64(size) * 100)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}
	s.mu.Lock()
	s.blobs[key] = out.Bytes()
	s.types[key] = contentType
	s.mu.Unlock()
	return "mem://" + key, nil
}

func (s *MemStore) URL(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return "", errors.Errorf("blob %s not found", key)
	}
	return "mem://" + key, nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	delete(s.types, key)
	return nil
}

// Blob returns the stored bytes; test helper.
func (s *MemStore) Blob(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Len reports how many blobs are held; test helper.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
