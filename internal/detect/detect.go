// Package detect classifies qualifying batch directories against the ledger's
// last completed manifests, deciding which batches the executor must copy.
package detect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ferry/internal/ledger"
	"ferry/internal/manifest"
)

// ErrSourceUnreadable marks a batch whose source directory is missing or
// cannot be enumerated. The coordinator records the item as failed and moves
// on; it never aborts the run.
var ErrSourceUnreadable = errors.New("source directory unreadable")

// Classification is the change detector's verdict for one batch.
type Classification string

const (
	// ClassificationNew marks a batch with no completed transfer on record.
	ClassificationNew Classification = "new"
	// ClassificationModified marks a batch whose source tree differs from
	// the manifest stored with its last completed transfer.
	ClassificationModified Classification = "modified"
	// ClassificationUnchanged marks a batch whose source tree matches its
	// last completed manifest exactly. Unchanged batches are skipped.
	ClassificationUnchanged Classification = "unchanged"
	// ClassificationDestinationMissing marks a previously completed batch
	// whose destination directory no longer exists and must be re-copied.
	ClassificationDestinationMissing Classification = "destination_missing"
)

// BatchItem is one classified unit of transfer work.
type BatchItem struct {
	BatchID         string
	SourcePath      string
	DestinationPath string
	Classification  Classification
	Manifest        manifest.Manifest
}

// NeedsTransfer reports whether the executor must copy this batch.
func (b BatchItem) NeedsTransfer() bool {
	return b.Classification != ClassificationUnchanged
}

// Classify builds the source manifest for batchID and compares it against the
// ledger's latest completed manifest. The comparison is size + mtime exact; a
// destination directory that disappeared forces a re-copy even when the
// source is unchanged.
func Classify(ctx context.Context, store *ledger.Store, batchID, sourceRoot, destRoot string) (BatchItem, error) {
	item := BatchItem{
		BatchID:         batchID,
		SourcePath:      filepath.Join(sourceRoot, batchID),
		DestinationPath: filepath.Join(destRoot, batchID),
	}

	info, err := os.Stat(item.SourcePath)
	if err != nil {
		return item, fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, item.SourcePath, err)
	}
	if !info.IsDir() {
		return item, fmt.Errorf("%w: %s is not a directory", ErrSourceUnreadable, item.SourcePath)
	}

	m, err := manifest.Build(item.SourcePath)
	if err != nil {
		return item, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	item.Manifest = m

	stored, ok, err := store.LatestCompletedManifest(ctx, batchID)
	if err != nil {
		return item, err
	}
	if !ok {
		item.Classification = ClassificationNew
		return item, nil
	}

	if _, statErr := os.Stat(item.DestinationPath); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			item.Classification = ClassificationDestinationMissing
			return item, nil
		}
		return item, fmt.Errorf("stat destination %s: %w", item.DestinationPath, statErr)
	}

	if m.Equal(stored) {
		item.Classification = ClassificationUnchanged
	} else {
		item.Classification = ClassificationModified
	}
	return item, nil
}
