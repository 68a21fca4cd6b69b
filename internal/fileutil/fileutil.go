package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CopyFileVerified streams src to a newly created dst, refusing to replace
// an existing file, and verifies the copy by size and optionally SHA-256.
// The destination carries the source's permission bits. A failed or
// mismatched copy removes dst so no partial file is left behind.
func CopyFileVerified(src, dst string, verifyChecksum bool) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("source %s is not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	var reader io.Reader = in
	var writer io.Writer = out
	if verifyChecksum {
		reader = io.TeeReader(in, srcHasher)
		writer = io.MultiWriter(out, dstHasher)
	}

	written, err := io.Copy(writer, reader)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if verifyChecksum && !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// UniquePath returns a path under dir that does not exist yet, starting with
// name and appending " (n)" before the extension on collision. After many
// collisions it falls back to a timestamp suffix.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); err != nil {
		return candidate
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n <= 100; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, time.Now().UnixNano(), ext))
}

// Exists reports whether the path can be lstat'ed. Dangling symlinks count.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
