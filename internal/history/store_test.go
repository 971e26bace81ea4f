package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pdiddy/grant-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.HistoryConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(text string, at time.Time) Run {
	return Run{
		CreatedAt: at,
		Query:     types.Query{Text: text},
		Grants:    3,
		Succeeded: []string{"grantsgov", "nihguide"},
		Failed:    []string{"samgov"},
		Partial:   true,
		Duration:  420 * time.Millisecond,
	}
}

// --- Record / Show ---

func TestRecordAndShow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	id, err := store.Record(ctx, sampleRun("rural broadband", at))
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Record returned empty id")
	}

	run, err := store.Show(ctx, id)
	if err != nil {
		t.Fatalf("Show returned error: %v", err)
	}
	if run.Query.Text != "rural broadband" {
		t.Errorf("Query.Text = %q", run.Query.Text)
	}
	if run.Grants != 3 || !run.Partial || run.CacheHit {
		t.Errorf("run = %+v", run)
	}
	if len(run.Succeeded) != 2 || run.Succeeded[0] != "grantsgov" {
		t.Errorf("Succeeded = %v", run.Succeeded)
	}
	if len(run.Failed) != 1 || run.Failed[0] != "samgov" {
		t.Errorf("Failed = %v", run.Failed)
	}
	if !run.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, at)
	}
	if run.Duration != 420*time.Millisecond {
		t.Errorf("Duration = %v", run.Duration)
	}
}

func TestRecordStoresEnvelopeSnapshot(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := sampleRun("wetland restoration", time.Now().UTC())
	run.Envelope = &types.Envelope{
		Grants: []types.GrantRecord{{
			SourceID:        "G-100",
			SourceName:      "grantsgov",
			Title:           "Wetland Restoration Partnerships",
			Agency:          "EPA",
			OpportunityType: types.OpportunityGrant,
			DataSources:     []string{"grantsgov"},
		}},
		SourcesSucceeded: []types.SourceOutcome{{Source: "grantsgov", Records: 1, Attempts: 1}},
		Timestamp:        time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	id, err := store.Record(ctx, run)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	got, err := store.Show(ctx, id)
	if err != nil {
		t.Fatalf("Show returned error: %v", err)
	}
	if got.Envelope == nil {
		t.Fatal("Show dropped the envelope snapshot")
	}
	if len(got.Envelope.Grants) != 1 || got.Envelope.Grants[0].Title != "Wetland Restoration Partnerships" {
		t.Errorf("snapshot grants = %+v", got.Envelope.Grants)
	}
	if len(got.Envelope.SourcesSucceeded) != 1 || got.Envelope.SourcesSucceeded[0].Records != 1 {
		t.Errorf("snapshot outcomes = %+v", got.Envelope.SourcesSucceeded)
	}

	// List returns summaries only; the snapshot stays on disk.
	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Envelope != nil {
		t.Errorf("List loaded the envelope snapshot: %+v", runs)
	}
}

func TestShowAcceptsUniquePrefix(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, sampleRun("solar", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	run, err := store.Show(ctx, id[:8])
	if err != nil {
		t.Fatalf("Show by prefix returned error: %v", err)
	}
	if run.ID != id {
		t.Errorf("ID = %q, want %q", run.ID, id)
	}
}

func TestShowNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.Show(context.Background(), "no-such-run")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// --- List ---

func TestListNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		if _, err := store.Record(ctx, sampleRun(text, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].Query.Text != "third" || runs[2].Query.Text != "first" {
		t.Errorf("order = %q, %q, %q; want newest first",
			runs[0].Query.Text, runs[1].Query.Text, runs[2].Query.Text)
	}
}

func TestListHonorsLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, sampleRun("q", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
}

// --- Prune ---

func TestPruneKeepsNewest(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, sampleRun("q", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	pruned, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune returned error: %v", err)
	}
	if pruned != 3 {
		t.Errorf("pruned = %d, want 3", pruned)
	}

	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	// The survivors are the two newest.
	if !runs[0].CreatedAt.After(runs[1].CreatedAt) {
		t.Errorf("survivors out of order: %v, %v", runs[0].CreatedAt, runs[1].CreatedAt)
	}
}

func TestPruneAllWithZeroKeep(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, sampleRun("q", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	pruned, err := store.Prune(ctx, 0)
	if err != nil || pruned != 1 {
		t.Fatalf("Prune = %d, %v; want 1, nil", pruned, err)
	}
}

// --- Persistence ---

func TestStoreReopens(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(types.HistoryConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.Record(ctx, sampleRun("durable", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewStore(types.HistoryConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	run, err := reopened.Show(ctx, id)
	if err != nil {
		t.Fatalf("Show after reopen returned error: %v", err)
	}
	if run.Query.Text != "durable" {
		t.Errorf("Query.Text = %q", run.Query.Text)
	}
}
