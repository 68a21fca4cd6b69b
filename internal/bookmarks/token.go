package bookmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ErrNotDirectory reports that a watched path resolves to something other
// than a directory.
var ErrNotDirectory = errors.New("not a directory")

// Token is the scoped-access grant for one watched folder. Device and Inode
// pin the token to the directory that existed when it was issued; a
// replaced or remounted directory invalidates the token even when the path
// still resolves.
type Token struct {
	Path     string    `json:"path"`
	Device   uint64    `json:"device"`
	Inode    uint64    `json:"inode"`
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issued_at"`
}

// IssueToken stats the directory and mints a token bound to it.
func IssueToken(path string) (*Token, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("token path is empty")
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return &Token{
		Path:     path,
		Device:   uint64(st.Dev),
		Inode:    st.Ino,
		Nonce:    uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}, nil
}

// Encode serializes the token for storage alongside its folder row.
func (t *Token) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return string(data), nil
}

// DecodeToken deserializes a stored token. Any malformed payload is an
// error; callers treat that as an invalid grant, not a recoverable state.
func DecodeToken(data string) (*Token, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, fmt.Errorf("token is empty")
	}
	var token Token
	if err := json.Unmarshal([]byte(trimmed), &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if token.Path == "" || token.Nonce == "" {
		return nil, fmt.Errorf("token is missing required fields")
	}
	return &token, nil
}
