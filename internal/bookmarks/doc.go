// Package bookmarks manages scoped access to watched folders. Every folder
// carries an opaque token recording the path it was issued for plus the
// device and inode observed at issue time. Resolution always re-validates
// the token against the folder's independently stored path before any
// filesystem handle is produced, so a swapped or forged token fails closed
// instead of granting access somewhere else.
package bookmarks
