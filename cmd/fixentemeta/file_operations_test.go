package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// assertNoTempFiles fails if a sibling temp file was left behind in dir.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWalkFiles(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"b.jpg",
		"a.jpg",
		"album/c.mp4",
		"album/nested/d.json",
		".Spotlight-V100/store.db",
		".fseventsd/0001",
		".b.123456.tmp.jpg",
		"album/.c.987654.tmp.mp4",
	}
	for _, f := range files {
		writeFile(t, filepath.Join(root, f), "x")
	}
	if err := os.Symlink(filepath.Join(root, "a.jpg"), filepath.Join(root, "link.jpg")); err != nil {
		t.Fatal(err)
	}

	var visited []string
	err := walkFiles(root, zerolog.Nop(), func(path string) error {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		visited = append(visited, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walkFiles failed: %v", err)
	}

	want := []string{"a.jpg", "album/c.mp4", "album/nested/d.json", "b.jpg"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited %v, want %v", visited, want)
	}
}

func TestWalkFiles_MissingRoot(t *testing.T) {
	err := walkFiles(filepath.Join(t.TempDir(), "missing"), zerolog.Nop(), func(string) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestIsSiblingTemp(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".clip.123456.tmp.mp4", true},
		{".IMG_1.42.tmp.jpg", true},
		{".raw.7.tmp", true},
		{"clip.tmp.mp4", false},
		{".hidden.jpg", false},
		{"IMG_1.jpg", false},
	}
	for _, tt := range tests {
		if got := isSiblingTemp(tt.name); got != tt.want {
			t.Errorf("isSiblingTemp(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	// Names produced by createSiblingTemp are recognized.
	tmp, err := createSiblingTemp(filepath.Join(t.TempDir(), "clip.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if !isSiblingTemp(filepath.Base(tmp)) {
		t.Errorf("isSiblingTemp(%q) = false for a generated temp name", filepath.Base(tmp))
	}
}

func TestCheckRootDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing directory", dir, false},
		{"missing directory", filepath.Join(dir, "missing"), true},
		{"regular file", file, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRootDir(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkRootDir(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestCreateSiblingTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")

	tmp, err := createSiblingTemp(path)
	if err != nil {
		t.Fatalf("createSiblingTemp failed: %v", err)
	}
	defer os.Remove(tmp)

	if filepath.Dir(tmp) != dir {
		t.Errorf("temp file %s not in %s", tmp, dir)
	}
	base := filepath.Base(tmp)
	if !strings.HasPrefix(base, ".clip.") || !strings.HasSuffix(base, ".tmp.mp4") {
		t.Errorf("unexpected temp name %q", base)
	}
	if filepath.Ext(tmp) != ".mp4" {
		t.Errorf("temp file should keep the .mp4 extension, got %q", filepath.Ext(tmp))
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "photo.jpg")
	writeFile(t, dst, "old")
	if err := os.Chmod(dst, 0600); err != nil {
		t.Fatal(err)
	}

	tmp, err := createSiblingTemp(dst)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tmp, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := replaceFile(tmp, dst); err != nil {
		t.Fatalf("replaceFile failed: %v", err)
	}

	assertFileContent(t, dst, []byte("new"))
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	assertNoTempFiles(t, dir)
}

func TestReplaceFile_MissingDestination(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, ".gone.1.tmp.jpg")
	writeFile(t, tmp, "new")

	if err := replaceFile(tmp, filepath.Join(dir, "gone.jpg")); err == nil {
		t.Fatal("expected error when the original is missing")
	}
	assertNoTempFiles(t, dir)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_1.jpg")
	writeFile(t, path, "before")

	if err := writeFileAtomic(path, []byte("after")); err != nil {
		t.Fatalf("writeFileAtomic failed: %v", err)
	}
	assertFileContent(t, path, []byte("after"))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	assertNoTempFiles(t, dir)
}

func TestCalculateDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	writeFile(t, a, "same content")
	writeFile(t, b, "same content")
	writeFile(t, c, "other content")

	da, err := calculateDigest(a)
	if err != nil {
		t.Fatal(err)
	}
	db, _ := calculateDigest(b)
	dc, _ := calculateDigest(c)

	if da != db {
		t.Error("identical files should have the same digest")
	}
	if da == dc {
		t.Error("different files should have different digests")
	}

	if _, err := calculateDigest(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}
	for _, tt := range tests {
		if got := humanReadableSize(tt.size); got != tt.want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	writeFile(t, file, "x")

	if !isRegularFile(file) {
		t.Error("expected regular file")
	}
	if isRegularFile(dir) {
		t.Error("directory reported as regular file")
	}
	if isRegularFile(filepath.Join(dir, "missing")) {
		t.Error("missing path reported as regular file")
	}
}
