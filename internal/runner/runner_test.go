package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/ledger"
	"ferry/internal/records"
	"ferry/internal/runner"
	"ferry/internal/testsupport"
)

func record(batchID, matchValue, emptyValue string) records.Record {
	return records.Record{
		BatchID: batchID,
		Columns: map[string]string{"AJ": matchValue, "AK": emptyValue},
	}
}

func TestRunOnceTransfersOnlyQualifyingBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})
	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B2", map[string]int64{"b.txt": 10})

	recs := []records.Record{
		record("B1", "PP", ""),
		record("B2", "QQ", ""),
	}

	coord := runner.New(cfg, store, nil)
	summary, err := coord.RunOnce(context.Background(), recs)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if summary.New != 1 || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.BytesCopied != 10 || summary.FilesCopied != 1 {
		t.Fatalf("unexpected copy counters: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DestinationRoot, "B1", "a.txt")); err != nil {
		t.Fatalf("B1 not transferred: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DestinationRoot, "B2")); !os.IsNotExist(err) {
		t.Fatal("B2 must never be touched")
	}
}

func TestRunOnceSkipsUnchangedOnSecondPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})
	recs := []records.Record{record("B1", "PP", "")}

	coord := runner.New(cfg, store, nil)
	if _, err := coord.RunOnce(context.Background(), recs); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	summary, err := coord.RunOnce(context.Background(), recs)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if summary.Unchanged != 1 || summary.Skipped != 1 {
		t.Fatalf("expected unchanged skip, got %+v", summary)
	}
	if summary.Completed != 0 || summary.FilesCopied != 0 {
		t.Fatalf("second pass must copy nothing: %+v", summary)
	}
}

func TestRunOnceRecopiesModifiedBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	dir := testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})
	recs := []records.Record{record("B1", "PP", "")}

	coord := runner.New(cfg, store, nil)
	if _, err := coord.RunOnce(context.Background(), recs); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(dir, "a.txt"), 25)

	summary, err := coord.RunOnce(context.Background(), recs)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if summary.Modified != 1 || summary.Completed != 1 {
		t.Fatalf("expected modified re-copy, got %+v", summary)
	}
	info, err := os.Stat(filepath.Join(cfg.Paths.DestinationRoot, "B1", "a.txt"))
	if err != nil || info.Size() != 25 {
		t.Fatalf("destination not refreshed: %v", err)
	}
}

func TestRunOnceRecopiesWhenDestinationRemoved(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})
	recs := []records.Record{record("B1", "PP", "")}

	coord := runner.New(cfg, store, nil)
	if _, err := coord.RunOnce(context.Background(), recs); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(cfg.Paths.DestinationRoot, "B1")); err != nil {
		t.Fatal(err)
	}

	summary, err := coord.RunOnce(context.Background(), recs)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if summary.DestinationMissing != 1 || summary.Completed != 1 {
		t.Fatalf("expected destination-missing re-copy, got %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DestinationRoot, "B1", "a.txt")); err != nil {
		t.Fatalf("destination not restored: %v", err)
	}
}

func TestRunOnceResumesInterruptedTransfer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{
		"a.txt": 10,
		"b.txt": 20,
	})

	// A previous run copied a.txt to the destination then died: started +
	// file_copied, no terminal record.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.DestinationRoot, "B1", "a.txt"), 10)
	item, err := store.Begin(ctx, "old-run", "B1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := item.RecordFileCopied(ctx, "a.txt"); err != nil {
		t.Fatal(err)
	}

	coord := runner.New(cfg, store, nil)
	summary, err := coord.RunOnce(ctx, []records.Record{record("B1", "PP", "")})
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if summary.Resumed != 1 || summary.Completed != 1 {
		t.Fatalf("expected resumed completion, got %+v", summary)
	}
	// Only b.txt is copied; a.txt was claimed by the interrupted run.
	if summary.FilesCopied != 1 || summary.BytesCopied != 20 {
		t.Fatalf("unexpected copy counters: %+v", summary)
	}

	pending, err := store.PendingIncomplete(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("resumed batch still pending: %+v", pending)
	}
}

func TestRunOnceClosesSupersededPendingHistories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})

	// Two runs on the same batch were both interrupted. The oldest resumes;
	// the newer history is closed so it stops reporting as pending.
	if _, err := store.Begin(ctx, "old-1", "B1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Begin(ctx, "old-2", "B1", nil); err != nil {
		t.Fatal(err)
	}

	coord := runner.New(cfg, store, nil)
	summary, err := coord.RunOnce(ctx, []records.Record{record("B1", "PP", "")})
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if summary.Resumed != 1 || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	pending, err := store.PendingIncomplete(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("superseded history still pending: %+v", pending)
	}

	history, err := store.History(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	superseded := false
	for _, rec := range history {
		if rec.Phase == ledger.PhaseFailed && rec.Reason == "superseded:old-1" {
			superseded = true
		}
	}
	if !superseded {
		t.Fatalf("superseded history not closed: %+v", history)
	}
}

func TestRunOnceMalformedSourcePropagates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	recs := []records.Record{
		{BatchID: "B1", Columns: map[string]string{"ZZ": "PP"}},
	}
	coord := runner.New(cfg, store, nil)
	if _, err := coord.RunOnce(context.Background(), recs); !errors.Is(err, records.ErrMalformedSource) {
		t.Fatalf("expected ErrMalformedSource, got %v", err)
	}
}

func TestRunOnceUnreadableSourceRecordedAsFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	// B1 qualifies but its source directory was never created.
	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B2", map[string]int64{"b.txt": 5})
	recs := []records.Record{
		record("B1", "PP", ""),
		record("B2", "PP", ""),
	}

	coord := runner.New(cfg, store, nil)
	summary, err := coord.RunOnce(ctx, recs)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 1 {
		t.Fatalf("one failure must not abort the run: %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Reason != "source-unreadable:B1" {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}

	history, err := store.History(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) == 0 || history[len(history)-1].Phase != ledger.PhaseFailed {
		t.Fatalf("unreadable source must leave a failed ledger record: %+v", history)
	}
}

func TestRunOnceItemFailureDoesNotAbortOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerPoolSize(2))
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 50})
	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B2", map[string]int64{"b.txt": 30})

	recs := []records.Record{
		record("B1", "PP", ""),
		record("B2", "PP", ""),
	}

	// A stray file occupies B1's destination path, so its directory cannot
	// be created and the batch fails while B2 sails through.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.DestinationRoot, "B1"), 1)

	coord := runner.New(cfg, store, nil)
	summary, err := coord.RunOnce(context.Background(), recs)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].BatchID != "B1" {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}
}
