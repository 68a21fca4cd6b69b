package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"shelf/internal/fileutil"
	"shelf/internal/testsupport"
)

func TestCopyFileVerifiedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	testsupport.WriteFile(t, src, 4096)
	if err := os.Chmod(src, 0o600); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if err := fileutil.CopyFileVerified(src, dst, true); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}

	srcData, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read src: %v", err)
	}
	dstData, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if len(srcData) != len(dstData) || string(srcData) != string(dstData) {
		t.Fatal("copied content differs")
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected source permissions preserved, got %v", info.Mode().Perm())
	}
}

func TestCopyFileVerifiedRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	testsupport.WriteFile(t, src, 128)
	testsupport.WriteFile(t, dst, 16)

	if err := fileutil.CopyFileVerified(src, dst, false); err == nil {
		t.Fatal("expected refusal to replace existing destination")
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if info.Size() != 16 {
		t.Fatal("existing destination must be untouched")
	}
}

func TestCopyFileVerifiedRejectsNonRegularSource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "link.txt")
	testsupport.WriteFile(t, target, 8)
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if err := fileutil.CopyFileVerified(link, filepath.Join(dir, "out.txt"), false); err == nil {
		t.Fatal("expected symlink source rejection")
	}
}

func TestUniquePathSequencing(t *testing.T) {
	dir := t.TempDir()

	first := fileutil.UniquePath(dir, "report.pdf")
	if first != filepath.Join(dir, "report.pdf") {
		t.Fatalf("expected plain name first, got %s", first)
	}
	testsupport.WriteFile(t, first, 1)

	second := fileutil.UniquePath(dir, "report.pdf")
	if second != filepath.Join(dir, "report (1).pdf") {
		t.Fatalf("expected numbered name, got %s", second)
	}
	testsupport.WriteFile(t, second, 1)

	third := fileutil.UniquePath(dir, "report.pdf")
	if third != filepath.Join(dir, "report (2).pdf") {
		t.Fatalf("expected next number, got %s", third)
	}
}
