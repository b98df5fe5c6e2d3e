// Package file_store persists user uploaded media (post images, videos,
// profile pictures) and serves them back by public URL.
package file_store

import (
	"io"
	"strconv"
	"sync"
)

// MediaStore stores an uploaded file and returns its public URL. Delete is
// best effort: removing a missing object reports false, never an error the
// caller must handle.
type MediaStore interface {
	Store(body io.Reader, ext string) (url string, err error)
	Delete(url string) bool
}

// MemoryMediaStore keeps uploads in a map. Tests and local development only.
type MemoryMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func NewMemoryMediaStore() *MemoryMediaStore {
	return &MemoryMediaStore{objects: map[string][]byte{}}
}

func (m *MemoryMediaStore) Store(body io.Reader, ext string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	url := "memory://media/" + strconv.Itoa(m.seq) + ext
	m.objects[url] = data
	return url, nil
}

func (m *MemoryMediaStore) Delete(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	delete(m.objects, url)
	return ok
}

// Len reports the number of stored objects, for assertions in tests.
func (m *MemoryMediaStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
