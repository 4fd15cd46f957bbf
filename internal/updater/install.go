package updater

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ReplaceSelf swaps the currently running binary for the one at
// newBinaryPath.
func ReplaceSelf(newBinaryPath string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	self, err = filepath.EvalSymlinks(self)
	if err != nil {
		return fmt.Errorf("cannot resolve symlinks: %w", err)
	}

	if runtime.GOOS == "windows" {
		// Windows refuses to overwrite a running binary; park it as .old.
		oldPath := self + ".old"
		_ = os.Remove(oldPath)
		if err := os.Rename(self, oldPath); err != nil {
			return fmt.Errorf("cannot rename current binary: %w", err)
		}
		if err := copyFile(newBinaryPath, self); err != nil {
			_ = os.Rename(oldPath, self)
			return fmt.Errorf("cannot write new binary: %w", err)
		}
		_ = os.Remove(oldPath)
	} else {
		if err := os.Rename(newBinaryPath, self); err != nil {
			// Cross-device rename fails; fall back to a copy.
			if err := copyFile(newBinaryPath, self); err != nil {
				return fmt.Errorf("cannot replace binary: %w", err)
			}
			os.Remove(newBinaryPath)
		}
	}
	return nil
}

// replaceSelf is ReplaceSelf behind a seam so tests can observe the apply
// without overwriting the test binary.
var replaceSelf = ReplaceSelf

// ApplyStaged applies a binary left in the staging directory by an earlier
// run whose install did not finish. Called at process start, before any
// checks. A missing staged binary is not an error.
func ApplyStaged(dataDir string) error {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dataDir = filepath.Join(home, ".drift")
	}
	stagingDir := filepath.Join(dataDir, "staging")
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// A completed download is staged under the feed's asset name, whatever
	// that is; drift-update-* files are temp leftovers from an interrupted
	// transfer and never applicable.
	var staged string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), "drift-update-") {
			continue
		}
		staged = filepath.Join(stagingDir, e.Name())
		break
	}
	if staged == "" {
		return nil
	}

	log.Printf("[updater] applying staged update from %s", staged)
	if err := replaceSelf(staged); err != nil {
		return err
	}
	return os.RemoveAll(stagingDir)
}

// copyFile copies src to dst with executable permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
