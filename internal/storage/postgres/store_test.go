package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"vaultflow/internal/model"
	"vaultflow/internal/sui"
)

// openTestStore connects to VAULTFLOW_TEST_PG_DSN or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("VAULTFLOW_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("VAULTFLOW_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestSessionStoreNilIsEmpty(t *testing.T) {
	var s *SessionStore
	if _, ok, err := s.Load(context.Background()); ok || err != nil {
		t.Fatalf("nil store should load nothing, ok=%v err=%v", ok, err)
	}
	if err := s.Save(context.Background(), model.Session{}); err != nil {
		t.Fatalf("nil store save: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	name := "test-" + uuid.NewString()

	sessions := &SessionStore{Store: store, Name: name}
	if _, ok, err := sessions.Load(ctx); err != nil || ok {
		t.Fatalf("expected no session, ok=%v err=%v", ok, err)
	}
	want := model.Session{}.WithFarm(sui.MustParseAddress("0x1"), sui.MustParseAddress("0x2"))
	if err := sessions.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := sessions.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Farm != want.Farm || got.FarmCap != want.FarmCap {
		t.Fatalf("session mismatch: %+v", got)
	}
}

func TestAppendRecordUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := model.WorkflowRecord{ID: uuid.NewString(), Workflow: "create-farm", Signer: "0x1", Status: model.StatusFailure}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	rec.Status = model.StatusSuccess
	rec.Digest = "digest"
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("append again: %v", err)
	}

	recs, err := store.Records(ctx, 50)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	for _, got := range recs {
		if got.ID == rec.ID {
			if got.Status != model.StatusSuccess || got.Digest != "digest" {
				t.Fatalf("record not updated: %+v", got)
			}
			return
		}
	}
	t.Fatalf("record %s not found", rec.ID)
}
