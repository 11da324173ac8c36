package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	runID, err := l.BeginRun(ctx, "travel-advisories")
	if err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}
	if runID == "" {
		t.Fatal("BeginRun() returned empty run ID")
	}

	chunks := []ChunkRecord{
		{RunID: runID, VectorID: "ISL_chunk_0", ISO3: "ISL", ChunkIndex: 0, TokenCount: 4200, Status: StatusUpserted},
		{RunID: runID, VectorID: "ISL_chunk_1", ISO3: "ISL", ChunkIndex: 1, TokenCount: 3100, Status: StatusFailed, Error: "embedding: embed: quota exceeded"},
		{RunID: runID, VectorID: "FRA_chunk_0", ISO3: "FRA", ChunkIndex: 0, TokenCount: 900, Status: StatusUpserted},
	}
	for _, rec := range chunks {
		if err := l.RecordChunk(ctx, rec); err != nil {
			t.Fatalf("RecordChunk(%s) error = %v", rec.VectorID, err)
		}
	}
	if err := l.FinishRun(ctx, runID, 2, 3, 1); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	run, err := l.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if run == nil {
		t.Fatal("LastRun() = nil, want finished run")
	}
	if run.ID != runID || run.Countries != 2 || run.ChunksTotal != 3 || run.ChunksFailed != 1 {
		t.Errorf("LastRun() = %+v, want sealed totals", run)
	}
	if run.FinishedAt == 0 {
		t.Error("LastRun().FinishedAt = 0, want timestamp")
	}

	failed, err := l.FailedChunks(ctx, runID)
	if err != nil {
		t.Fatalf("FailedChunks() error = %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("FailedChunks() = %d records, want 1", len(failed))
	}
	if failed[0].VectorID != "ISL_chunk_1" || failed[0].Error == "" {
		t.Errorf("failed chunk = %+v, want ISL_chunk_1 with error text", failed[0])
	}
}

func TestRecordChunkOverwrites(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	runID, err := l.BeginRun(ctx, "travel-advisories")
	if err != nil {
		t.Fatal(err)
	}
	rec := ChunkRecord{RunID: runID, VectorID: "JPN_chunk_0", ISO3: "JPN", Status: StatusFailed, Error: "timeout"}
	if err := l.RecordChunk(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Status = StatusUpserted
	rec.Error = ""
	if err := l.RecordChunk(ctx, rec); err != nil {
		t.Fatal(err)
	}

	failed, err := l.FailedChunks(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Errorf("FailedChunks() = %d records after retry success, want 0", len(failed))
	}
}

func TestLastRunEmpty(t *testing.T) {
	l := openTestLedger(t)

	run, err := l.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if run != nil {
		t.Errorf("LastRun() = %+v, want nil for empty ledger", run)
	}
}
