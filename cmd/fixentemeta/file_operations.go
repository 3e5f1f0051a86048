package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// checkRootDir makes sure the scan root exists, is a directory and can be listed.
func checkRootDir(rootDir string) error {
	info, err := os.Stat(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("root directory does not exist: %s", rootDir)
		}
		return fmt.Errorf("error accessing root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path is not a directory: %s", rootDir)
	}

	f, err := os.Open(rootDir)
	if err != nil {
		return fmt.Errorf("root directory is not readable: %w", err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && err != io.EOF {
		return fmt.Errorf("root directory is not readable: %w", err)
	}

	return nil
}

// walkFiles calls visit for every regular file under rootDir, depth-first in
// lexical order. Unreadable subdirectories are logged and skipped.
func walkFiles(rootDir string, log zerolog.Logger, visit func(path string) error) error {
	return filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootDir {
				return fmt.Errorf("error accessing path %q: %w", path, err)
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip .Spotlight-V100 and .fseventsd folders
		if d.IsDir() && (d.Name() == ".Spotlight-V100" || d.Name() == ".fseventsd") {
			return filepath.SkipDir
		}

		if !d.Type().IsRegular() {
			return nil
		}

		// Leftovers from an interrupted rewrite are not media of their own.
		if isSiblingTemp(d.Name()) {
			log.Debug().Str("path", path).Msg("Skipping leftover temp file")
			return nil
		}

		return visit(path)
	})
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// createSiblingTemp creates an empty temp file next to path that keeps its
// extension, e.g. clip.mp4 -> .clip.123456.tmp.mp4.
func createSiblingTemp(path string) (string, error) {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	pattern := "." + strings.TrimSuffix(base, ext) + ".*.tmp" + ext

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return name, nil
}

// isSiblingTemp reports whether name has the shape createSiblingTemp produces.
func isSiblingTemp(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), ".tmp")
}

// replaceFile moves tmpPath over dstPath, keeping dstPath's permission bits.
// tmpPath is removed if the replacement fails.
func replaceFile(tmpPath, dstPath string) error {
	info, err := os.Stat(dstPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("stat original: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("copying file mode: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing original: %w", err)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpPath, err := createSiblingTemp(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	return replaceFile(tmpPath, path)
}

func calculateDigest(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, file); err != nil {
		return 0, err
	}

	return hash.Sum64(), nil
}

func humanReadableSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
