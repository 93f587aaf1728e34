package memory

import (
	"context"
	"errors"
	"testing"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

func TestOfferEventStore_InsertAndGet(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	event := &domain.OfferEvent{
		LedgerIndex:   89003950,
		TxHash:        "ABC123",
		TxIndex:       4,
		Maker:         "r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWK",
		OfferSequence: 84437895,
		Status:        domain.OfferStatusFilled,
		GetsCurrency:  "XRP",
		GetsDelta:     "333332",
		PaysCurrency:  "534F4C4F00000000000000000000000000000000",
		PaysIssuer:    "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz",
		PaysDelta:     "1.479516091976118",
		ObservedAt:    1704067200000,
	}

	if err := store.Insert(ctx, event); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByMaker(ctx, event.Maker)
	if err != nil {
		t.Fatalf("GetByMaker failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(result))
	}
	if result[0].GetsDelta != "333332" {
		t.Errorf("GetsDelta mismatch: got %s, want 333332", result[0].GetsDelta)
	}
}

func TestOfferEventStore_GetByKey(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	event := &domain.OfferEvent{
		TxHash:        "ABC123",
		Maker:         "rMaker",
		OfferSequence: 7,
		LedgerIndex:   100,
		GetsDelta:     "333332",
	}
	if err := store.Insert(ctx, event); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, "ABC123", "rMaker", 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.GetsDelta != "333332" {
		t.Errorf("GetsDelta mismatch: got %s, want 333332", got.GetsDelta)
	}

	_, err = store.Get(ctx, "ABC123", "rMaker", 8)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOfferEventStore_DuplicateKey(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	event := &domain.OfferEvent{
		TxHash:        "ABC123",
		Maker:         "rMaker",
		OfferSequence: 1,
		LedgerIndex:   100,
	}

	if err := store.Insert(ctx, event); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, event)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestOfferEventStore_InsertBulkAtomic(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	events := []*domain.OfferEvent{
		{TxHash: "T1", Maker: "rA", OfferSequence: 1, LedgerIndex: 100},
		{TxHash: "T2", Maker: "rA", OfferSequence: 2, LedgerIndex: 101},
		{TxHash: "T1", Maker: "rA", OfferSequence: 1, LedgerIndex: 100}, // intra-batch duplicate
	}

	err := store.InsertBulk(ctx, events)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch is visible
	result, err := store.GetByMaker(ctx, "rA")
	if err != nil {
		t.Fatalf("GetByMaker failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty store after failed batch, got %d events", len(result))
	}
}

func TestOfferEventStore_GetByLedgerRangeOrdering(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	events := []*domain.OfferEvent{
		{TxHash: "T3", Maker: "rA", OfferSequence: 3, LedgerIndex: 102, TxIndex: 0},
		{TxHash: "T1", Maker: "rA", OfferSequence: 1, LedgerIndex: 100, TxIndex: 7},
		{TxHash: "T2", Maker: "rB", OfferSequence: 2, LedgerIndex: 100, TxIndex: 2},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByLedgerRange(ctx, 100, 101)
	if err != nil {
		t.Fatalf("GetByLedgerRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(result))
	}
	if result[0].TxHash != "T2" || result[1].TxHash != "T1" {
		t.Errorf("Wrong order: got %s, %s", result[0].TxHash, result[1].TxHash)
	}
}

func TestOfferEventStore_InvalidInput(t *testing.T) {
	store := NewOfferEventStore()
	ctx := context.Background()

	err := store.Insert(ctx, &domain.OfferEvent{TxHash: "", Maker: "rA"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
