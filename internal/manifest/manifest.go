// Package manifest builds and compares the sorted file listings that drive
// change detection. A manifest records every file under a batch directory
// with its size and modification time; two manifests are equal only when the
// relative path sets and each entry's size and mtime match exactly.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Entry describes one file within a batch directory.
type Entry struct {
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	// ModifiedUnixNano is the file modification time. Network drives coarsen
	// timestamps, so the value is compared exactly rather than rounded.
	ModifiedUnixNano int64 `json:"modified_unix_nano"`
}

// Manifest is the ordered sequence of a batch's files, sorted by relative
// path. The deterministic ordering makes manifest comparison and ledger
// replay stable.
type Manifest []Entry

// Build enumerates every regular file under root recursively and returns the
// sorted manifest. An existing directory with no files yields an empty,
// non-nil manifest.
func Build(root string) (Manifest, error) {
	m := Manifest{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m = append(m, Entry{
			RelativePath:     filepath.ToSlash(rel),
			SizeBytes:        info.Size(),
			ModifiedUnixNano: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}
	sort.Sort(m)
	return m, nil
}

func (m Manifest) Len() int           { return len(m) }
func (m Manifest) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m Manifest) Less(i, j int) bool { return m[i].RelativePath < m[j].RelativePath }

// TotalBytes sums the sizes of all entries.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, entry := range m {
		total += entry.SizeBytes
	}
	return total
}

// Equal reports whether other lists exactly the same relative paths with
// identical sizes and modification times. Any added, removed, resized, or
// re-timestamped file makes the manifests unequal.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// EncodeJSON renders the manifest for ledger storage.
func (m Manifest) EncodeJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses a manifest previously produced by EncodeJSON.
func DecodeJSON(data string) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	sort.Sort(m)
	return m, nil
}
