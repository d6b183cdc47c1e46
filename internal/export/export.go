// Package export writes a project tree to a directory on disk.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ErrNotDirectory is returned when the destination exists and is a file.
var ErrNotDirectory = errors.New("export destination is not a directory")

// Options configures Export.
type Options struct {
	// RespectGitignore skips files matched by the tree's own /.gitignore.
	RespectGitignore bool
}

// Export writes every file of tree under dir, creating it if needed. It
// returns the tree paths written, in tree order.
func Export(tree *filetree.Tree, dir string, opts Options) ([]string, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var matcher gitignore.Matcher
	if opts.RespectGitignore {
		if content, err := tree.ReadFile("/.gitignore"); err == nil {
			matcher = newMatcher(content)
		}
	}

	var written []string
	for _, f := range tree.Files() {
		if matcher != nil && ignored(matcher, f.Path) {
			continue
		}
		target, err := securejoin.SecureJoin(dir, strings.TrimPrefix(f.Path, "/"))
		if err != nil {
			return written, fmt.Errorf("resolve %s: %w", f.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	return written, nil
}

func newMatcher(content string) gitignore.Matcher {
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns)
}

// ignored matches the file and each of its parent folders, so directory
// patterns like "dist/" exclude everything beneath them.
func ignored(m gitignore.Matcher, p string) bool {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if m.Match(segments[:i], true) {
			return true
		}
	}
	return m.Match(segments, false)
}
