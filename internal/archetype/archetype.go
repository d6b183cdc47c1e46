// Package archetype classifies a project prompt into one of the supported
// stacks and supplies the seed artifact each stack starts from.
package archetype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognized is returned when a classification answer names no known
// archetype. Callers must not proceed to generation.
var ErrUnrecognized = errors.New("unrecognized archetype")

// Archetype is a project stack classification.
type Archetype string

const (
	Node  Archetype = "node"
	React Archetype = "react"
)

// All lists the known archetypes.
var All = []Archetype{Node, React}

func (a Archetype) String() string { return string(a) }

// Valid reports whether a is one of the known archetypes.
func (a Archetype) Valid() bool {
	return a == Node || a == React
}

// Parse maps a model answer to an archetype. Only surrounding whitespace is
// ignored; anything but an exact name is ErrUnrecognized.
func Parse(answer string) (Archetype, error) {
	a := Archetype(strings.TrimSpace(answer))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnrecognized, truncate(answer, 64))
	}
	return a, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
