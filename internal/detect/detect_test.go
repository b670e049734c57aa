package detect_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ferry/internal/detect"
	"ferry/internal/manifest"
	"ferry/internal/testsupport"
)

func TestClassifyNewBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{
		"video.mov":   2048,
		"sub/note.md": 64,
	})

	item, err := detect.Classify(context.Background(), store, "B1", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if item.Classification != detect.ClassificationNew {
		t.Fatalf("classification = %s, want new", item.Classification)
	}
	if len(item.Manifest) != 2 {
		t.Fatalf("manifest has %d entries, want 2", len(item.Manifest))
	}
	if !item.NeedsTransfer() {
		t.Fatal("new batch must need transfer")
	}
	if item.SourcePath != filepath.Join(cfg.Paths.SourceRoot, "B1") {
		t.Fatalf("unexpected source path %s", item.SourcePath)
	}
	if item.DestinationPath != filepath.Join(cfg.Paths.DestinationRoot, "B1") {
		t.Fatalf("unexpected destination path %s", item.DestinationPath)
	}
}

func TestClassifyEmptySourceDirIsValid(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	if err := os.MkdirAll(filepath.Join(cfg.Paths.SourceRoot, "B1"), 0o755); err != nil {
		t.Fatal(err)
	}

	item, err := detect.Classify(context.Background(), store, "B1", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if item.Classification != detect.ClassificationNew {
		t.Fatalf("classification = %s, want new", item.Classification)
	}
	if item.Manifest == nil || len(item.Manifest) != 0 {
		t.Fatalf("expected empty non-nil manifest, got %+v", item.Manifest)
	}
}

func TestClassifyMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	_, err := detect.Classify(context.Background(), store, "B404", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
	if !errors.Is(err, detect.ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestClassifyAgainstCompletedManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	dir := testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 100})
	baseline, err := manifest.Build(dir)
	if err != nil {
		t.Fatal(err)
	}

	h, err := store.Begin(ctx, "run-1", "B1", baseline)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.RecordVerified(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.RecordCompleted(ctx, baseline); err != nil {
		t.Fatal(err)
	}

	// Destination absent after a completed transfer forces a re-copy.
	item, err := detect.Classify(ctx, store, "B1", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if item.Classification != detect.ClassificationDestinationMissing {
		t.Fatalf("classification = %s, want destination_missing", item.Classification)
	}

	// With the destination in place and an identical source, nothing to do.
	if err := os.MkdirAll(filepath.Join(cfg.Paths.DestinationRoot, "B1"), 0o755); err != nil {
		t.Fatal(err)
	}
	item, err = detect.Classify(ctx, store, "B1", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if item.Classification != detect.ClassificationUnchanged {
		t.Fatalf("classification = %s, want unchanged", item.Classification)
	}
	if item.NeedsTransfer() {
		t.Fatal("unchanged batch must not need transfer")
	}
}

func TestClassifyDetectsModification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	dir := testsupport.WriteBatch(t, cfg.Paths.SourceRoot, "B1", map[string]int64{"a.txt": 100})
	baseline, err := manifest.Build(dir)
	if err != nil {
		t.Fatal(err)
	}
	h, err := store.Begin(ctx, "run-1", "B1", baseline)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.RecordVerified(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.RecordCompleted(ctx, baseline); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Paths.DestinationRoot, "B1"), 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		mutate func(t *testing.T)
	}{
		{
			name: "file resized",
			mutate: func(t *testing.T) {
				testsupport.WriteFile(t, filepath.Join(dir, "a.txt"), 150)
			},
		},
		{
			name: "mtime bumped",
			mutate: func(t *testing.T) {
				future := time.Now().Add(2 * time.Hour)
				if err := os.Chtimes(filepath.Join(dir, "a.txt"), future, future); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "file added",
			mutate: func(t *testing.T) {
				testsupport.WriteFile(t, filepath.Join(dir, "b.txt"), 5)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.mutate(t)
			item, err := detect.Classify(ctx, store, "B1", cfg.Paths.SourceRoot, cfg.Paths.DestinationRoot)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if item.Classification != detect.ClassificationModified {
				t.Fatalf("classification = %s, want modified", item.Classification)
			}
		})
	}
}
