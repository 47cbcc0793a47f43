package citycat

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// ManifestFile is the name of the input-set manifest.
const ManifestFile = "manifest.json"

// ManifestEntry records one input file.
type ManifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	XXHash string `json:"xxhash64"`
}

// Manifest lists every file of a complete input set.
type Manifest struct {
	CreatedAt time.Time       `json:"created_at"`
	Files     []ManifestEntry `json:"files"`
}

// digestFile streams path through xxhash64.
func digestFile(path string) (ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return ManifestEntry{}, err
	}
	defer f.Close()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{
		Name:   filepath.Base(path),
		Size:   n,
		XXHash: fmt.Sprintf("%016x", h.Sum64()),
	}, nil
}

// writeManifest digests names inside dir and writes the manifest there.
func writeManifest(dir string, names []string) (*Manifest, error) {
	m := &Manifest{CreatedAt: domain.Now()}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		e, err := digestFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", n, err)
		}
		m.Files = append(m.Files, e)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// ReadManifest loads the manifest from an input directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", domain.ErrFormat, err)
	}
	return &m, nil
}

// VerifyManifest checks that every file listed in the manifest is present
// with the recorded size and digest.
func VerifyManifest(dir string) error {
	m, err := ReadManifest(dir)
	if err != nil {
		return err
	}
	for _, want := range m.Files {
		got, err := digestFile(filepath.Join(dir, want.Name))
		if err != nil {
			return fmt.Errorf("%w: input %s: %v", domain.ErrDataIntegrity, want.Name, err)
		}
		if got.Size != want.Size || got.XXHash != want.XXHash {
			return fmt.Errorf("%w: input %s changed since it was written", domain.ErrDataIntegrity, want.Name)
		}
	}
	return nil
}
