// Package cache stores one JSON-encoded domain.Result per content
// fingerprint, directly generalizing the teacher's store.FileStorage
// (one JSON file per key, os.MkdirAll + os.WriteFile) from "store name" to
// "analysis fingerprint". The write is not atomic; a partially written entry
// fails to decode and Get reports it as a CacheCorruptionError.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/pkg/errors"
	"github.com/facasdxf/complexity-engine/internal/pkg/hash"
)

// Cache is the result cache contract the worker depends on.
type Cache interface {
	Get(fingerprint string) (*domain.Result, bool, error)
	Put(fingerprint string, result domain.Result) error
}

// FileCache stores each cached result as "<safe-fingerprint>.analysis.json"
// under basePath.
type FileCache struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileCache creates a file-backed cache rooted at basePath.
func NewFileCache(basePath string) *FileCache {
	return &FileCache{basePath: basePath}
}

func (c *FileCache) path(fingerprint string) string {
	return filepath.Join(c.basePath, hash.SafeStorageKey(fingerprint)+".analysis.json")
}

// Get returns the cached result for fingerprint, (nil, false, nil) on a
// clean miss, or a CacheCorruptionError if the stored JSON fails to parse;
// callers treat a corruption error the same as a miss.
func (c *FileCache) Get(fingerprint string) (*domain.Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.InternalError("failed to read cache entry", err)
	}

	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, errors.CacheCorruptionError("failed to unmarshal cached result", err)
	}
	return &result, true, nil
}

// Put writes result to the cache under fingerprint, creating basePath if
// needed.
func (c *FileCache) Put(fingerprint string, result domain.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.basePath, 0755); err != nil {
		return errors.InternalError("failed to create cache directory", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.InternalError("failed to marshal cached result", err)
	}

	if err := os.WriteFile(c.path(fingerprint), data, 0644); err != nil {
		return errors.InternalError("failed to write cache entry", err)
	}
	return nil
}
