package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ferry/internal/daemon"
	"ferry/internal/records"
	"ferry/internal/testsupport"
)

type staticSource struct {
	recs []records.Record
}

func (s staticSource) LoadRecords(context.Context) ([]records.Record, error) {
	return s.recs, nil
}

func TestPassExecuteEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 10})
	source := staticSource{recs: []records.Record{
		{BatchID: "B1", Columns: map[string]string{"AJ": "PP", "AK": ""}},
		{BatchID: "B2", Columns: map[string]string{"AJ": "QQ", "AK": ""}},
	}}

	pass := daemon.NewPass(cfg, store, source, nil)
	summary, err := pass.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DestinationRoot, "B1", "a.txt")); err != nil {
		t.Fatalf("B1 not transferred: %v", err)
	}
}

func TestPassExecuteFailsWhenSourceRootMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	// Source root never created: the storage check must stop the pass.

	pass := daemon.NewPass(cfg, store, staticSource{}, nil)
	if _, err := pass.Execute(context.Background()); err == nil {
		t.Fatal("expected storage verification failure")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	if err := os.MkdirAll(cfg.Paths.SourceRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	pass := daemon.NewPass(cfg, store, staticSource{}, nil)

	first, err := daemon.New(cfg, pass, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	second, err := daemon.New(cfg, pass, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- first.Run(ctx)
	}()
	<-started

	// Wait until the first daemon holds the lock before starting the second.
	deadline := time.Now().Add(2 * time.Second)
	for !first.Running() {
		if time.Now().After(deadline) {
			t.Fatal("first daemon never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := second.Run(ctx); err == nil {
		t.Fatal("second instance must fail to acquire the lock")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first daemon returned error: %v", err)
	}
}
