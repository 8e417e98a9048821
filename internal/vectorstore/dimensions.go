package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// dimensionRegistry persists the vector width of each collection in a JSON
// sidecar file next to the collection data. The embedded backend does not
// expose per-collection dimensions, so the registry is the authority: the
// first EnsureCollection fixes a width and every later write is checked
// against it, surviving process restarts.
type dimensionRegistry struct {
	path string

	mu   sync.Mutex
	dims map[string]int
}

const dimensionsFileName = "dimensions.json"

// newDimensionRegistry loads the registry from dir, creating an empty one if
// no file exists yet. An unreadable or corrupt file is an error; silently
// starting empty would let mismatched vectors into existing collections.
func newDimensionRegistry(dir string) (*dimensionRegistry, error) {
	r := &dimensionRegistry{
		path: filepath.Join(dir, dimensionsFileName),
		dims: make(map[string]int),
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading dimension registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.dims); err != nil {
		return nil, fmt.Errorf("parsing dimension registry %s: %w", r.path, err)
	}
	return r, nil
}

// newMemoryDimensionRegistry creates a registry with no backing file, for
// in-memory stores.
func newMemoryDimensionRegistry() *dimensionRegistry {
	return &dimensionRegistry{dims: make(map[string]int)}
}

// register records the width for a collection. Registering the same width
// again is a no-op; a conflicting width returns ErrDimensionMismatch.
func (r *dimensionRegistry) register(collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, dimensions)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.dims[collection]; ok {
		if existing != dimensions {
			return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
				ErrDimensionMismatch, collection, existing, dimensions)
		}
		return nil
	}

	r.dims[collection] = dimensions
	if err := r.save(); err != nil {
		delete(r.dims, collection)
		return err
	}
	return nil
}

// lookup returns the registered width for a collection.
func (r *dimensionRegistry) lookup(collection string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dims[collection]
	return d, ok
}

// check validates a vector width against the registered collection width.
func (r *dimensionRegistry) check(collection string, width int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	expected, ok := r.dims[collection]
	if !ok {
		return fmt.Errorf("%w: %s has no registered dimensions", ErrCollectionNotFound, collection)
	}
	if width != expected {
		return fmt.Errorf("%w: collection %s expects %d dimensions, got %d",
			ErrDimensionMismatch, collection, expected, width)
	}
	return nil
}

// remove drops a collection from the registry.
func (r *dimensionRegistry) remove(collection string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dims[collection]; !ok {
		return nil
	}
	delete(r.dims, collection)
	return r.save()
}

// save writes the registry atomically: temp file in the same directory, then
// rename. Callers hold r.mu.
func (r *dimensionRegistry) save() error {
	if r.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(r.dims, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dimension registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), dimensionsFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing dimension registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing dimension registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing dimension registry: %w", err)
	}
	return nil
}
