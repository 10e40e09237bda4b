package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/entity"
	"github.com/billflow/billflow/internal/notify"
)

// fakeGenerator scripts one response (or error) per prompt kind, keyed off
// the role line each prompt template opens with.
type fakeGenerator struct {
	mu sync.Mutex

	classifyResp string
	classifyErr  error
	extractResp  string
	extractErr   error
	transformResp string
	transformErr  error

	classifyCalls  int
	extractCalls   int
	transformCalls int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case strings.Contains(prompt, "document classifier"):
		g.classifyCalls++
		return g.classifyResp, g.classifyErr
	case strings.Contains(prompt, "data extraction assistant"):
		g.extractCalls++
		return g.extractResp, g.extractErr
	case strings.Contains(prompt, "integration assistant"):
		g.transformCalls++
		return g.transformResp, g.transformErr
	}
	return "", fmt.Errorf("unrecognized prompt: %.60s", prompt)
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, common.ErrNotFound)
	}
	return data, nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.local/" + key, nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Extract(context.Context, []byte) (string, error) {
	return f.text, f.err
}

// fakeRepo is an in-memory DocumentRepository keeping insertion order.
type fakeRepo struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*entity.Document
	order     []uuid.UUID
	insertErr error
	updateErr error
	listErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[uuid.UUID]*entity.Document)}
}

func (r *fakeRepo) Insert(_ context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, exists := r.docs[doc.ID]; !exists {
		r.order = append(r.order, doc.ID)
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *fakeRepo) UpdateExtraction(_ context.Context, id uuid.UUID, extracted, netsuite entity.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if len(extracted) == 0 || len(netsuite) == 0 {
		return fmt.Errorf("update document %s: both extraction fields required", id)
	}
	doc, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("update document %s: %w", id, common.ErrNotFound)
	}
	updated := entity.Rehydrate(doc.ID, doc.Filename, doc.ContentType, doc.ObjectKey,
		doc.CreatedAt, doc.BillType, doc.BillSubtype, extracted, netsuite)
	r.docs[id] = updated
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (r *fakeRepo) List(_ context.Context) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*entity.Document, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.docs[r.order[i]].Clone())
	}
	return out, nil
}

func (r *fakeRepo) ListUnprocessed(_ context.Context) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*entity.Document
	for _, id := range r.order {
		d := r.docs[id]
		if len(d.ExtractedData) == 0 || len(d.NetsuiteData) == 0 {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

type fakePusher struct {
	mu       sync.Mutex
	payloads []notify.Payload
	err      error
}

func (p *fakePusher) Push(_ context.Context, payload notify.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}
