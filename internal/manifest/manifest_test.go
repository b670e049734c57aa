package manifest_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ferry/internal/manifest"
	"ferry/internal/testsupport"
)

func TestBuildSortsByRelativePath(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "z.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "sub", "a.txt"), 20)
	testsupport.WriteFile(t, filepath.Join(root, "b.txt"), 5)

	m, err := manifest.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("got %d entries, want 3", len(m))
	}
	want := []string{"b.txt", "sub/a.txt", "z.txt"}
	for i, entry := range m {
		if entry.RelativePath != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, entry.RelativePath, want[i])
		}
	}
	if m.TotalBytes() != 35 {
		t.Fatalf("TotalBytes = %d, want 35", m.TotalBytes())
	}
}

func TestBuildEmptyDirectory(t *testing.T) {
	m, err := manifest.Build(t.TempDir())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil manifest for empty directory")
	}
	if len(m) != 0 {
		t.Fatalf("expected empty manifest, got %d entries", len(m))
	}
}

func TestBuildMissingDirectory(t *testing.T) {
	_, err := manifest.Build(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestEqualDetectsChanges(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.txt"), 10)

	base, err := manifest.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	same, _ := manifest.Build(root)
	if !base.Equal(same) {
		t.Fatal("identical trees should compare equal")
	}

	// Resize.
	testsupport.WriteFile(t, filepath.Join(root, "a.txt"), 11)
	resized, _ := manifest.Build(root)
	if base.Equal(resized) {
		t.Fatal("resized file should compare unequal")
	}

	// Re-timestamp without changing size.
	testsupport.WriteFile(t, filepath.Join(root, "a.txt"), 10)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(root, "a.txt"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	touched, _ := manifest.Build(root)
	if base.Equal(touched) {
		t.Fatal("re-timestamped file should compare unequal")
	}

	// Added file.
	testsupport.WriteFile(t, filepath.Join(root, "new.txt"), 1)
	added, _ := manifest.Build(root)
	if base.Equal(added) {
		t.Fatal("added file should compare unequal")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "b", "c.txt"), 20)

	m, err := manifest.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	encoded, err := m.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	decoded, err := manifest.DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if !m.Equal(decoded) {
		t.Fatalf("round trip mismatch: %+v vs %+v", m, decoded)
	}
}
