package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteBatch creates a batch directory under root with the given files, sized
// by the map values.
func WriteBatch(t testing.TB, root, batchID string, files map[string]int64) string {
	t.Helper()

	dir := filepath.Join(root, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir batch %s: %v", dir, err)
	}
	for rel, size := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(rel)), size)
	}
	return dir
}
