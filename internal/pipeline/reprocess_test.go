package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/entity"
)

func TestReprocessSweep(t *testing.T) {
	gen := &fakeGenerator{
		extractResp:   `{"total": "10.00"}`,
		transformResp: `{"record_type": "vendorbill"}`,
	}
	store := newFakeStore()
	repo := newFakeRepo()
	o := NewOrchestrator(discardLogger(), store, &fakeOCR{text: "TOTAL 10.00"}, gen, repo, &fakePusher{})

	ctx := context.Background()
	now := time.Now().UTC()

	// Stuck after classification, image present: should recover.
	stuck := entity.Rehydrate(uuid.New(), "a.png", "image/png", "k/a.png", now,
		"invoice", "utility", nil, nil)
	// Image missing from the store: should fail without aborting the sweep.
	orphan := entity.Rehydrate(uuid.New(), "b.png", "image/png", "k/b.png", now,
		"invoice", "utility", nil, nil)
	// Fully processed: must not be scanned at all.
	done := entity.Rehydrate(uuid.New(), "c.png", "image/png", "k/c.png", now,
		"expense", "food", entity.Fields{"total": "1"}, entity.Fields{"record_type": "expensereport"})

	for _, d := range []*entity.Document{stuck, orphan, done} {
		if err := repo.Insert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Put(ctx, "k/a.png", []byte("png-bytes"), "image/png"); err != nil {
		t.Fatal(err)
	}

	stats, err := o.Reprocess(ctx)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if stats.Scanned != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want scanned 2 / succeeded 1 / failed 1", stats)
	}

	// Classification is reused, never redone.
	if gen.classifyCalls != 0 {
		t.Errorf("classification model called %d times during sweep", gen.classifyCalls)
	}

	recovered, err := repo.Get(ctx, stuck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if recovered.ExtractedData["total"] != "10.00" {
		t.Errorf("recovered extracted data = %v", recovered.ExtractedData)
	}
	if recovered.NetsuiteData["record_type"] != "vendorbill" {
		t.Errorf("recovered netsuite data = %v", recovered.NetsuiteData)
	}
}

func TestReprocessUnknownTypeCounted(t *testing.T) {
	gen := &fakeGenerator{}
	store := newFakeStore()
	repo := newFakeRepo()
	o := NewOrchestrator(discardLogger(), store, &fakeOCR{text: "text"}, gen, repo, &fakePusher{})

	ctx := context.Background()
	doc := entity.Rehydrate(uuid.New(), "u.png", "image/png", "k/u.png", time.Now().UTC(),
		entity.BillTypeUnknown, entity.BillTypeUnknown, nil, nil)
	if err := repo.Insert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "k/u.png", []byte("png"), "image/png"); err != nil {
		t.Fatal(err)
	}

	stats, err := o.Reprocess(ctx)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if stats.Failed != 1 || stats.Succeeded != 0 {
		t.Fatalf("stats = %+v, want the unknown-type document to fail", stats)
	}
}

func TestReprocessEmptyBacklog(t *testing.T) {
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, &fakeGenerator{}, newFakeRepo(), &fakePusher{})
	stats, err := o.Reprocess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Scanned != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
