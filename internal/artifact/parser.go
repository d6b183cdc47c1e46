package artifact

import (
	"html"
	"iter"
	"regexp"
	"slices"
	"strings"
)

const (
	actionOpen    = "<boltAction"
	actionClose   = "</boltAction>"
	artifactOpen  = "<boltArtifact"
	artifactClose = "</boltArtifact>"
)

var (
	attrRe         = regexp.MustCompile(`([A-Za-z_][\w-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	artifactTagRe  = regexp.MustCompile(`<boltArtifact\b[^>]*>|</boltArtifact>`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	artifactHeadRe = regexp.MustCompile(`<boltArtifact\b([^>]*)>`)
)

// Parse returns the actions of text in order. Unless final is set, an
// unterminated trailing block is withheld because more text may complete
// it; with final set it is delivered as an ambiguous Shell action.
//
// Parse is pure: parsing an extension of text yields the result for text
// as a prefix.
func Parse(text string, final bool) []Action {
	return slices.Collect(Actions(text, final))
}

// Actions is the lazy form of Parse. Each range over it rescans from the
// start of text.
func Actions(text string, final bool) iter.Seq[Action] {
	return func(yield func(Action) bool) {
		s := scanner{text: text, final: final}
		for {
			a, ok := s.next()
			if !ok || !yield(a) {
				return
			}
		}
	}
}

type scanner struct {
	text    string
	final   bool
	pos     int // next byte to scan
	prevEnd int // end of the previous block, start of the current prose
	index   int
	done    bool
}

func (s *scanner) next() (Action, bool) {
	if s.done {
		return Action{}, false
	}

	rel := strings.Index(s.text[s.pos:], actionOpen)
	if rel < 0 {
		s.done = true
		return Action{}, false
	}
	start := s.pos + rel

	gt := strings.IndexByte(s.text[start:], '>')
	if gt < 0 {
		return s.trailing(start, "unterminated action tag")
	}
	header := s.text[start+len(actionOpen) : start+gt]
	bodyStart := start + gt + 1

	closeRel := strings.Index(s.text[bodyStart:], actionClose)
	nestedRel := strings.Index(s.text[bodyStart:], actionOpen)

	// An opener before this block's close means the block never closed.
	// The region up to the next opener can no longer change, so it is
	// delivered now and scanning resumes at the nested opener.
	if nestedRel >= 0 && (closeRel < 0 || nestedRel < closeRel) {
		end := bodyStart + nestedRel
		a := s.emit(start, Action{
			Kind:    KindShell,
			RawText: s.text[start:end],
			Err:     ambiguous("action block not closed before next block"),
		})
		s.pos, s.prevEnd = end, end
		return a, true
	}

	if closeRel < 0 {
		return s.trailing(start, "action block not closed")
	}

	end := bodyStart + closeRel + len(actionClose)
	a := s.emit(start, classify(header, s.text[bodyStart:bodyStart+closeRel], s.text[start:end]))
	s.pos, s.prevEnd = end, end
	return a, true
}

// trailing handles an incomplete block at the end of the text.
func (s *scanner) trailing(start int, reason string) (Action, bool) {
	s.done = true
	if !s.final {
		return Action{}, false
	}
	return s.emit(start, Action{
		Kind:    KindShell,
		RawText: s.text[start:],
		Err:     ambiguous(reason),
	}), true
}

func (s *scanner) emit(start int, a Action) Action {
	a.Index = s.index
	s.index++
	a.Title = title(a)
	a.Description = strings.TrimSpace(stripArtifactTags(s.text[s.prevEnd:start]))
	if a.Description == "" {
		a.Description = ArtifactTitle(s.text[:start])
	}
	return a
}

func parseAttributes(header string) map[string]any {
	attrs := make(map[string]any)
	for _, m := range attrRe.FindAllStringSubmatch(header, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		attrs[m[1]] = html.UnescapeString(val)
	}
	return attrs
}

// ArtifactTitle returns the title attribute of the last artifact opened in
// text, or "".
func ArtifactTitle(text string) string {
	matches := artifactHeadRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	if t, ok := parseAttributes(matches[len(matches)-1][1])["title"].(string); ok {
		return t
	}
	return ""
}

// Prose returns text with every action block and artifact tag removed.
// An unterminated trailing block is removed as well.
func Prose(text string) string {
	var b strings.Builder
	pos := 0
	for {
		rel := strings.Index(text[pos:], actionOpen)
		if rel < 0 {
			b.WriteString(text[pos:])
			break
		}
		start := pos + rel
		b.WriteString(text[pos:start])
		closeRel := strings.Index(text[start:], actionClose)
		if closeRel < 0 {
			break
		}
		pos = start + closeRel + len(actionClose)
	}

	out := stripArtifactTags(b.String())
	// drop a dangling "<boltArt" style fragment left by a stream cut
	if i := strings.LastIndexByte(out, '<'); i >= 0 && isTagFragment(out[i:]) {
		out = out[:i]
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	out = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRunRe.ReplaceAllString(out, "\n\n"))
}

func isTagFragment(s string) bool {
	if strings.Contains(s, ">") {
		return false
	}
	for _, tag := range []string{artifactOpen, artifactClose, actionOpen} {
		if strings.HasPrefix(tag, s) || strings.HasPrefix(s, tag) {
			return true
		}
	}
	return false
}

func stripArtifactTags(s string) string {
	return artifactTagRe.ReplaceAllString(s, "")
}
