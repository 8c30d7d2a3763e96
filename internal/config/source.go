package config

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source abstracts where configuration documents are read from: a rooted
// filesystem directory or an embedded resource tree. Both variants reject
// any path that escapes their root.
type Source interface {
	// ReadFile returns the contents of the document at the root-relative
	// path.
	ReadFile(name string) ([]byte, error)

	// Describe names the root for log and error messages.
	Describe() string
}

// DirSource reads documents from a filesystem directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// ReadFile implements Source.
func (s *DirSource) ReadFile(name string) ([]byte, error) {
	rel, err := sanitizeRelPath(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
}

// Describe implements Source.
func (s *DirSource) Describe() string {
	return fmt.Sprintf("directory %s", s.root)
}

// FSSource reads documents from an embedded resource tree (any fs.FS).
type FSSource struct {
	fsys fs.FS
	desc string
}

// NewFSSource creates a source over an embedded tree. desc names it in logs.
func NewFSSource(fsys fs.FS, desc string) *FSSource {
	return &FSSource{fsys: fsys, desc: desc}
}

// ReadFile implements Source.
func (s *FSSource) ReadFile(name string) ([]byte, error) {
	rel, err := sanitizeRelPath(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(s.fsys, rel)
}

// Describe implements Source.
func (s *FSSource) Describe() string {
	if s.desc != "" {
		return s.desc
	}
	return "embedded resources"
}

// sanitizeRelPath normalizes a root-relative document path and rejects
// anything that would escape the root.
func sanitizeRelPath(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("empty configuration path")
	}
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("configuration path %q escapes the configuration root", name)
	}
	return cleaned, nil
}
