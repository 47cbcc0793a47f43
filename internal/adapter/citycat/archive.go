package citycat

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArchiveSurfaceMaps zips the solver's surface map directory to
// <runDir>/R1C1_SurfaceMaps.zip and returns the archive path.
func ArchiveSurfaceMaps(runDir string) (string, error) {
	src := filepath.Join(runDir, SurfaceMapsDir)
	dst := src + ".zip"

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("archive surface maps: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	return dst, nil
}
