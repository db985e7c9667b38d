package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// MemoryObjects is an in-memory storage.ObjectStore with failure injection.
type MemoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing map[string]error
	puts    int
}

// NewMemoryObjects returns an empty object store.
func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: map[string][]byte{}, failing: map[string]error{}}
}

// FailKey makes every Put of key fail with err. A nil err clears the failure.
func (m *MemoryObjects) FailKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, key)
		return
	}
	m.failing[key] = err
}

// Puts returns how many successful Put calls were made.
func (m *MemoryObjects) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Object returns a copy of the stored bytes for key.
func (m *MemoryObjects) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return append([]byte(nil), data...), ok
}

// Delete removes key, simulating an orphaned record.
func (m *MemoryObjects) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

func (m *MemoryObjects) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[key]; err != nil {
		return err
	}
	m.objects[key] = append([]byte(nil), data...)
	m.puts++
	return nil
}

func (m *MemoryObjects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "memory", "open object", fmt.Sprintf("object %s", key), nil)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

func (m *MemoryObjects) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryObjects) URL(context.Context, string) (string, error) { return "", nil }

func (m *MemoryObjects) Close() error { return nil }

// MemoryRecords is an in-memory storage.RecordStore with failure injection.
type MemoryRecords struct {
	mu      sync.Mutex
	records map[string]storage.VideoRecord
	failing map[string]error
	saves   int
}

// NewMemoryRecords returns an empty record store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: map[string]storage.VideoRecord{}, failing: map[string]error{}}
}

// FailID makes every Save of id fail with err. A nil err clears the failure.
func (m *MemoryRecords) FailID(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, id)
		return
	}
	m.failing[id] = err
}

// Saves returns how many successful Save calls were made.
func (m *MemoryRecords) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryRecords) Save(_ context.Context, rec storage.VideoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[rec.ID]; err != nil {
		return err
	}
	m.records[rec.ID] = rec
	m.saves++
	return nil
}

func (m *MemoryRecords) Get(_ context.Context, id string) (storage.VideoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, "memory", "get record", fmt.Sprintf("record %s", id), nil)
	}
	return rec, nil
}

func (m *MemoryRecords) List(context.Context) ([]storage.VideoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.VideoRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryRecords) Close() error { return nil }

// MemoryBackend bundles a composite backend with handles to its halves.
type MemoryBackend struct {
	*storage.Composite
	Objects *MemoryObjects
	Records *MemoryRecords
}

// NewMemoryBackend returns an in-memory backend named name.
func NewMemoryBackend(name string) *MemoryBackend {
	objects := NewMemoryObjects()
	records := NewMemoryRecords()
	return &MemoryBackend{
		Composite: storage.NewComposite(name, objects, records, nil),
		Objects:   objects,
		Records:   records,
	}
}
