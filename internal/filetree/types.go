package filetree

import (
	"path"
	"strings"
)

// Kind distinguishes files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// MarshalText lets Kind render as "file"/"folder" in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// EventKind is the mutation carried by an Event.
type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText lets EventKind render as its name in JSON.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event describes one committed change to one node.
type Event struct {
	Path     string
	Kind     EventKind
	NodeKind Kind
}

// Observer receives events synchronously after each mutation commits.
// Observers must not mutate the tree from inside the callback.
type Observer func(Event)

// Node is a read view of a file or folder. It is a copy; changing it does
// not affect the tree.
type Node struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Kind     Kind   `json:"type"`
	Content  string `json:"content,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// File is one file of a snapshot.
type File struct {
	Path    string
	Content string
}

// Root is the path of the root folder.
const Root = "/"

// Normalize converts p to the tree's canonical form: slash separated,
// rooted at "/", no "." segments, no trailing slash. Backslashes are
// treated as separators. ".." segments are rejected rather than resolved.
func Normalize(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", ErrInvalidPath
	}
	for seg := range strings.SplitSeq(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	return path.Clean("/" + p), nil
}

// Segments splits a normalized path into its names. The root has none.
func Segments(p string) []string {
	if p == Root {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// ancestors returns the folder paths above p, from the root down, excluding p.
func ancestors(p string) []string {
	segs := Segments(p)
	out := make([]string, 0, len(segs))
	out = append(out, Root)
	for i := 1; i < len(segs); i++ {
		out = append(out, "/"+strings.Join(segs[:i], "/"))
	}
	return out
}
