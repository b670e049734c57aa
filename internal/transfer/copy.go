package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// stagingSuffix is appended to a file's destination name while its bytes are
// in flight. The rename to the final name happens only after the full copy
// succeeds, so a crash never leaves a truncated file under the real name.
const stagingSuffix = ".ferrytmp"

const copyChunkSize = 128 * 1024

// copyResult carries what one successful staged copy produced.
type copyResult struct {
	bytesWritten int64
	checksum     string
}

// stagedCopy streams src into dst's staging file and renames it into place.
// The context is checked between chunks so cancellation and per-attempt
// timeouts take effect mid-file; an aborted attempt removes its staging file
// and leaves any previous final file untouched.
func stagedCopy(ctx context.Context, src, dst string) (copyResult, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return copyResult{}, fmt.Errorf("create destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return copyResult{}, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	staging := dst + stagingSuffix
	out, err := os.Create(staging)
	if err != nil {
		return copyResult{}, fmt.Errorf("create staging file: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(in, hasher)
	buf := make([]byte, copyChunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			_ = out.Close()
			_ = os.Remove(staging)
			return copyResult{}, err
		}
		n, readErr := tee.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				_ = out.Close()
				_ = os.Remove(staging)
				return copyResult{}, fmt.Errorf("write staging file: %w", writeErr)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = out.Close()
			_ = os.Remove(staging)
			return copyResult{}, fmt.Errorf("read source: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(staging)
		return copyResult{}, fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(staging, dst); err != nil {
		_ = os.Remove(staging)
		return copyResult{}, fmt.Errorf("rename staging file: %w", err)
	}

	return copyResult{
		bytesWritten: written,
		checksum:     hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// hashFile computes the sha256 of an on-disk file, used to re-verify the
// destination after the rename when checksum verification is enabled.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// sleepBackoff waits for the exponential backoff delay of the given attempt
// number (1-based), or returns early when the context is done.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
