package project

import (
	"fmt"
	"path/filepath"
)

// Identity names the container artifacts of one project directory.
type Identity struct {
	Image    string // per-project image, stable across runs
	Instance string // per-run container name, Image plus a suffix
}

// IdentityFor derives the identity of dir from a filesystem-stable id
// (the inode on unix). The same directory always maps to the same image.
func IdentityFor(dir, prefix, suffix string) (Identity, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve project directory: %w", err)
	}
	id, err := stableID(abs)
	if err != nil {
		return Identity{}, fmt.Errorf("identify project directory: %w", err)
	}
	image := prefix + id
	return Identity{Image: image, Instance: image + suffix}, nil
}
