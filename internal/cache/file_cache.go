// Package cache keeps computed values in checksummed JSON files so that
// repeated runs over the same area skip the coverage pass.
package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/coverage"
	"github.com/paulmach/orb"
)

type CacheEntry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

type CacheService[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T) error
	GenerateKey(params ...interface{}) string
}

type FileCache[T any] struct {
	cacheDir string
}

// NewFileCache stores entries under <root>/data/<subDir>.
func NewFileCache[T any](root, subDir string) *FileCache[T] {
	return NewFileCacheAt[T](filepath.Join(root, "data", subDir))
}

func NewFileCacheAt[T any](dir string) *FileCache[T] {
	return &FileCache[T]{cacheDir: dir}
}

func (fc *FileCache[T]) Dir() string {
	return fc.cacheDir
}

func (fc *FileCache[T]) GenerateKey(params ...interface{}) string {
	var keyData string
	for _, param := range params {
		keyData += fmt.Sprintf("%v_", param)
	}
	h := sha1.New()
	h.Write([]byte(keyData))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns false for missing, unreadable or tampered entries.
func (fc *FileCache[T]) Get(key string) (T, bool) {
	var zero T
	data, err := os.ReadFile(filepath.Join(fc.cacheDir, key+".json"))
	if err != nil {
		return zero, false
	}

	var entry CacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, false
	}
	if entry.Checksum != fc.calculateChecksum(entry.Data) {
		return zero, false
	}
	return entry.Data, true
}

func (fc *FileCache[T]) Set(key string, data T) error {
	if err := os.MkdirAll(fc.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	jsonData, err := json.Marshal(CacheEntry[T]{
		Data:      data,
		CreatedAt: time.Now(),
		Checksum:  fc.calculateChecksum(data),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	cacheFile := filepath.Join(fc.cacheDir, key+".json")
	tmpFile := cacheFile + ".tmp"
	if err := os.WriteFile(tmpFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmpFile, cacheFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}
	return nil
}

func (fc *FileCache[T]) calculateChecksum(data T) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return hex.EncodeToString(hash[:])
}

// CoverageKey identifies a coverage by everything that changes its result.
func CoverageKey(c CacheService[coverage.Set], polygon orb.Polygon, target, coarse int, mode coverage.Mode, reclip bool) string {
	return c.GenerateKey(polygon, target, coarse, mode, reclip)
}

// CachedCover returns the cached coverage for the arguments, computing and
// storing it on a miss. A failed store is returned with the computed set.
func CachedCover(c CacheService[coverage.Set], g coverage.Generator, polygon orb.Polygon, target, coarse int, mode coverage.Mode) (coverage.Set, bool, error) {
	key := CoverageKey(c, polygon, target, coarse, mode, g.Reclip)
	if set, ok := c.Get(key); ok {
		return set, true, nil
	}
	set, err := g.Cover(polygon, target, coarse, mode)
	if err != nil {
		return coverage.Set{}, false, err
	}
	if err := c.Set(key, set); err != nil {
		return set, false, err
	}
	return set, false, nil
}
