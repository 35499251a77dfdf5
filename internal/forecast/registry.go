package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Registry holds the fitted model of each lot and persists the set as a
// JSON object keyed by lot id.
type Registry struct {
	mu     sync.RWMutex
	models map[uint64]ARModel
	path   string
}

// NewRegistry returns an empty registry backed by path. An empty path
// keeps models in memory only.
func NewRegistry(path string) *Registry {
	return &Registry{models: make(map[uint64]ARModel), path: path}
}

func (r *Registry) Get(lotID uint64) (ARModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[lotID]
	return m, ok
}

func (r *Registry) Put(lotID uint64, m ARModel) {
	r.mu.Lock()
	r.models[lotID] = m
	r.mu.Unlock()
}

func (r *Registry) Delete(lotID uint64) {
	r.mu.Lock()
	delete(r.models, lotID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Save writes every model to the backing file via a temp file and rename.
func (r *Registry) Save() error {
	if r.path == "" {
		return nil
	}
	r.mu.RLock()
	body, err := json.MarshalIndent(r.models, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write models: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Load replaces the in-memory models with the file contents. A missing
// file leaves the registry empty and is not an error.
func (r *Registry) Load() error {
	if r.path == "" {
		return nil
	}
	body, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read models: %w", err)
	}
	models := make(map[uint64]ARModel)
	if err := json.Unmarshal(body, &models); err != nil {
		return fmt.Errorf("decode models: %w", err)
	}
	r.mu.Lock()
	r.models = models
	r.mu.Unlock()
	return nil
}
