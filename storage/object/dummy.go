package objstore

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/mitihani/core/exam"
)

// DummyStore is an in-memory exam.FileStore for tests.
type DummyStore struct {
	mutex    sync.RWMutex
	objects  map[string][]byte
	presigns int

	Deleted []string // paths removed, in order
}

var _ exam.FileStore = (*DummyStore)(nil) // interface compliance check

func NewDummyStore() *DummyStore {
	return &DummyStore{objects: make(map[string][]byte)}
}

func (store *DummyStore) Save(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.objects[path] = data
	return nil
}

// PresignedURL returns a distinct URL on every call so tests can assert
// that stale links get refreshed.
func (store *DummyStore) PresignedURL(_ context.Context, path, filename string) (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, ok := store.objects[path]; !ok {
		return "", errors.Errorf("object %s not found", path)
	}
	store.presigns++
	return fmt.Sprintf("http://localhost:9000/%s?filename=%s&sig=%d", path, filename, store.presigns), nil
}

func (store *DummyStore) Delete(_ context.Context, path string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, ok := store.objects[path]; !ok {
		return errors.Errorf("object %s not found", path)
	}
	delete(store.objects, path)
	store.Deleted = append(store.Deleted, path)
	return nil
}

// Has reports whether an object exists at the given path.
func (store *DummyStore) Has(path string) bool {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	_, ok := store.objects[path]
	return ok
}
