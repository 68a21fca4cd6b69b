package bookmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shelf/internal/store"
)

// Handle is an open, validated scope over one watched folder. Callers must
// Close it on every exit path.
type Handle struct {
	folder *store.Folder
	root   *os.Root
}

// Folder returns the registration the handle was resolved for.
func (h *Handle) Folder() *store.Folder {
	return h.folder
}

// Root exposes the scoped filesystem root for operations that must not
// escape the folder.
func (h *Handle) Root() *os.Root {
	return h.root
}

// Close releases the scope.
func (h *Handle) Close() error {
	if h == nil || h.root == nil {
		return nil
	}
	return h.root.Close()
}

// Entry is one immediate child of a watched folder.
type Entry struct {
	Name       string
	Path       string
	Extension  string
	SizeBytes  int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	IsDir      bool
	IsRegular  bool
}

// Enumerate lists the folder's immediate children. Symlinks are reported as
// non-regular entries; the scanner never follows them.
func (h *Handle) Enumerate() ([]Entry, error) {
	dir, err := h.root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("open folder: %w", err)
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		info, err := h.root.Lstat(name)
		if err != nil {
			// The entry vanished between listing and stat; the next scan
			// will catch up.
			continue
		}
		entry := Entry{
			Name:       name,
			Path:       filepath.Join(h.folder.Path, name),
			Extension:  NormalizeExtension(name),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
			IsDir:      info.IsDir(),
			IsRegular:  info.Mode().IsRegular(),
		}
		entry.CreatedAt = creationTime(entry.Path, entry.ModifiedAt)
		entries = append(entries, entry)
	}
	return entries, nil
}

// NormalizeExtension extracts the lowercase extension without its dot.
func NormalizeExtension(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return strings.ToLower(ext)
}

// creationTime asks the kernel for the birth time, falling back to the
// inode change time on filesystems that do not record one.
func creationTime(path string, fallback time.Time) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err == nil && stx.Mask&unix.STATX_BTIME != 0 && stx.Btime.Sec != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)).UTC()
	}
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err == nil && st.Ctim.Sec != 0 {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)).UTC()
	}
	return fallback
}
