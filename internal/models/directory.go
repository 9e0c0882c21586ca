package models

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// RootPath is the namespace root. It always exists.
const RootPath = "/"

// EntryKind tags a directory entry
type EntryKind string

const (
	EntryFile   EntryKind = "file"
	EntryFolder EntryKind = "folder"
)

// Entry is one child of a directory. On the wire it is {"file_name": n} or {"folder_name": n}.
type Entry struct {
	Kind EntryKind
	Name string
}

// FileEntry returns a file entry
func FileEntry(name string) Entry { return Entry{Kind: EntryFile, Name: name} }

// FolderEntry returns a folder entry
func FolderEntry(name string) Entry { return Entry{Kind: EntryFolder, Name: name} }

// MarshalJSON implements json.Marshaler
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EntryFile:
		return json.Marshal(map[string]string{"file_name": e.Name})
	case EntryFolder:
		return json.Marshal(map[string]string{"folder_name": e.Name})
	default:
		return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if name, ok := raw["file_name"]; ok {
		*e = FileEntry(name)
		return nil
	}
	if name, ok := raw["folder_name"]; ok {
		*e = FolderEntry(name)
		return nil
	}
	return fmt.Errorf("directory entry has neither file_name nor folder_name: %s", data)
}

// Directory is a namespace node
type Directory struct {
	Path    string  `json:"directory_path"`
	Content []Entry `json:"content"`
}

// Has reports whether the directory contains the entry
func (d *Directory) Has(e Entry) bool {
	for _, c := range d.Content {
		if c == e {
			return true
		}
	}
	return false
}

// Files returns the names of contained files in content order
func (d *Directory) Files() []string {
	return d.names(EntryFile)
}

// Folders returns the names of contained folders in content order
func (d *Directory) Folders() []string {
	return d.names(EntryFolder)
}

func (d *Directory) names(kind EntryKind) []string {
	out := make([]string, 0, len(d.Content))
	for _, c := range d.Content {
		if c.Kind == kind {
			out = append(out, c.Name)
		}
	}
	return out
}

// NormalizePath makes p absolute and clean. "" and "." become the root.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return RootPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// JoinPath joins a directory path and a child name
func JoinPath(dir, name string) string {
	return path.Join(NormalizePath(dir), name)
}

// SplitPath returns the parent path and base name of p. The root has no parent.
func SplitPath(p string) (parent, name string) {
	p = NormalizePath(p)
	if p == RootPath {
		return "", ""
	}
	return path.Dir(p), path.Base(p)
}

// IsWithin reports whether p equals dir or is a descendant of it
func IsWithin(p, dir string) bool {
	p, dir = NormalizePath(p), NormalizePath(dir)
	if dir == RootPath {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// ValidName reports whether name can be used as a single path segment
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
