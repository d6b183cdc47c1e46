package artifact

import (
	"strings"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/kballard/go-shellquote"
	"github.com/mitchellh/mapstructure"
)

// actionAttributes are the recognised attributes of an action opening tag.
type actionAttributes struct {
	Type     string `mapstructure:"type"`
	FilePath string `mapstructure:"filePath"`
	Path     string `mapstructure:"path"`
}

// shellMeta marks text that needs a shell to run: operators, redirects,
// substitutions and variable expansion.
const shellMeta = "&|;<>`$(){}*?"

func classify(header, body, raw string) Action {
	var attrs actionAttributes
	if err := mapstructure.WeakDecode(parseAttributes(header), &attrs); err != nil {
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("malformed attributes: " + err.Error())}
	}

	switch strings.ToLower(attrs.Type) {
	case "file":
		return classifyFile(attrs, body, raw)
	case "shell":
		return classifyShell(body, raw)
	case "":
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("missing type attribute")}
	default:
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("unknown action type " + attrs.Type)}
	}
}

func classifyFile(attrs actionAttributes, body, raw string) Action {
	p := attrs.FilePath
	if p == "" {
		p = attrs.Path
	}
	if strings.TrimSpace(p) == "" {
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("file action without path")}
	}
	norm, err := filetree.Normalize(p)
	if err != nil || norm == filetree.Root {
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("invalid file path " + p)}
	}
	return Action{Kind: KindWriteFile, Path: norm, Content: fileContent(body)}
}

// fileContent drops the newline after the opening tag and the indentation
// before the closing tag.
func fileContent(body string) string {
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")
	return strings.TrimRight(body, " \t")
}

func classifyShell(body, raw string) Action {
	script := strings.TrimSpace(body)
	if script == "" {
		return Action{Kind: KindShell, RawText: raw, Err: ambiguous("empty shell action")}
	}
	name, args, ok := SplitCommand(script)
	if !ok {
		return Action{Kind: KindShell, RawText: script}
	}
	return Action{Kind: KindRunCommand, Command: name, Args: args}
}

// SplitCommand splits a single-line command into its words. It reports
// false when line needs a shell: operators, redirects, expansions,
// variable assignments, several lines, or unbalanced quotes.
func SplitCommand(line string) (string, []string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsAny(line, shellMeta+"\n") {
		return "", nil, false
	}
	words, err := shellquote.Split(line)
	if err != nil || len(words) == 0 || strings.Contains(words[0], "=") {
		return "", nil, false
	}
	return words[0], words[1:], true
}

func title(a Action) string {
	switch {
	case a.Ambiguous():
		return "Unrecognized block"
	case a.Kind == KindWriteFile:
		return "Create " + strings.TrimPrefix(a.Path, "/")
	case a.Kind == KindRunCommand:
		return "Run " + a.CommandLine()
	case strings.Contains(a.RawText, "\n"):
		return "Run shell script"
	default:
		return "Run " + a.RawText
	}
}
