package document

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// RenderData carries everything the renderer needs to produce a prescription
// document. Patient contact data is intentionally absent.
type RenderData struct {
	PrescriptionID string
	ClinicianName  string
	Items          []RenderItem
	ExpiresAt      string
}

// RenderItem is one medication line on the rendered document.
type RenderItem struct {
	Drug         string
	Strength     string
	Form         string
	Quantity     int
	Instructions string
}

// Renderer produces a durable document from prescription data.
type Renderer interface {
	RenderPrescription(ctx context.Context, data RenderData) ([]byte, error)
}

// Store uploads rendered documents and returns a stable URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, blob []byte) (string, error)
}

// TextRenderer is a stub renderer producing a plain-text document.
type TextRenderer struct{}

// NewTextRenderer constructs the stub renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) RenderPrescription(_ context.Context, data RenderData) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Prescription %s\nPrescriber: %s\nValid until: %s\n\n", data.PrescriptionID, data.ClinicianName, data.ExpiresAt)
	for _, item := range data.Items {
		fmt.Fprintf(&b, "- %s %s %s x%d: %s\n", item.Drug, item.Strength, item.Form, item.Quantity, item.Instructions)
	}
	return []byte(b.String()), nil
}

// MemoryStore keeps uploaded blobs in a map. Test and development stub.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore constructs the stub object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key, _ string, blob []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob
	return "memory://" + key, nil
}

// Get returns a stored blob. Test helper.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[key]
	return blob, ok
}
