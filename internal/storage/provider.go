// Package storage defines the inbox file-system abstraction.
package storage

import "time"

// File describes one payload file found in a directory.
type File struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for inbox file operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns the payload files directly inside dir, oldest first.
	List(dir string) ([]File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Accepts reports whether a file name is a payload the inbox imports.
	Accepts(name string) bool
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}
