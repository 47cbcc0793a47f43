package citycat

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// SolverLogFile captures the solver's combined stdout and stderr.
const SolverLogFile = "citycat.log"

// Solver runs the CityCAT executable against a prepared input directory.
type Solver struct {
	// Executable is the solver binary copied into each run directory.
	Executable string
	// Wrapper, when set, launches the executable (for example wine64).
	Wrapper string
	// Timeout bounds a single run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Run verifies the input manifest, copies the executable into runDir,
// runs "<exe> -r 1 -c 1" there as one blocking call and removes the copy.
func (s *Solver) Run(ctx context.Context, runDir string) error {
	if err := VerifyManifest(runDir); err != nil {
		return err
	}

	exe := filepath.Join(runDir, filepath.Base(s.Executable))
	if err := copyFile(s.Executable, exe); err != nil {
		return fmt.Errorf("%w: stage solver executable: %v", domain.ErrConfiguration, err)
	}
	defer os.Remove(exe)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := []string{"./" + filepath.Base(exe), "-r", "1", "-c", "1"}
	name := args[0]
	if s.Wrapper != "" {
		name = s.Wrapper
		args = append([]string{filepath.Base(exe)}, args[1:]...)
	} else {
		args = args[1:]
	}

	logf, err := os.Create(filepath.Join(runDir, SolverLogFile))
	if err != nil {
		return fmt.Errorf("create solver log: %w", err)
	}
	defer logf.Close()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = runDir
	cmd.Stdout = logf
	cmd.Stderr = logf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run solver: %w", err)
	}

	if _, err := os.Stat(filepath.Join(runDir, SurfaceMapsDir)); err != nil {
		return fmt.Errorf("%w: solver produced no %s directory", domain.ErrCoverage, SurfaceMapsDir)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o100)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
