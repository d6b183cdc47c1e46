package archetype

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/Cyclone1070/buildforme/internal/testing/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		answer  string
		want    Archetype
		wantErr bool
	}{
		{"react", React, false},
		{"node", Node, false},
		{"  react\n", React, false},
		{"React", "", true},
		{"'node'", "", true},
		{"react.", "", true},
		{"cobol", "", true},
		{"", "", true},
		{"react or node", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, err := Parse(tt.answer)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnrecognized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_SendsClassifyPrompt(t *testing.T) {
	p := testhelpers.NewMockProvider().WithTextResponse("react\n")
	c := NewClassifier(p, 200, nil)

	got, err := c.Classify(context.Background(), "Build a todo app")
	require.NoError(t, err)
	assert.Equal(t, React, got)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, classifyPrompt, reqs[0].System)
	assert.Equal(t, 200, reqs[0].MaxTokens)
	assert.Equal(t, []models.Message{{Role: models.RoleUser, Content: "Build a todo app"}}, reqs[0].Messages)
}

func TestClassifier_Unrecognized(t *testing.T) {
	p := testhelpers.NewMockProvider().WithTextResponse("cobol")
	_, err := NewClassifier(p, 200, nil).Classify(context.Background(), "mainframe batch job")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestClassifier_EmptyAnswerIsUnrecognized(t *testing.T) {
	p := testhelpers.NewMockProvider().WithError(models.NewEmptyResponseError("mock"))
	_, err := NewClassifier(p, 200, nil).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestClassifier_UpstreamFailure(t *testing.T) {
	upstream := models.NewNetworkError(errors.New("connection refused"))
	p := testhelpers.NewMockProvider().WithError(upstream)

	_, err := NewClassifier(p, 200, nil).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrUnrecognized)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.NotEmpty(t, c.DesignPrompt)
	assert.Contains(t, c.SystemPrompt, "<boltArtifact>")

	for _, a := range All {
		t.Run(a.String(), func(t *testing.T) {
			seed, err := c.Seed(a)
			require.NoError(t, err)
			assert.False(t, strings.HasSuffix(seed, "\n"))

			actions := artifact.Parse(seed, true)
			require.NotEmpty(t, actions)
			var paths []string
			for _, act := range actions {
				require.NoError(t, act.Err)
				assert.Equal(t, artifact.KindWriteFile, act.Kind)
				paths = append(paths, act.Path)
			}
			assert.Contains(t, paths, "/package.json")
		})
	}
}

func TestCatalog_Template(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	react, err := c.Template(React)
	require.NoError(t, err)
	require.Len(t, react.Prompts, 2)
	require.Len(t, react.UIPrompts, 1)
	assert.Equal(t, c.DesignPrompt, react.Prompts[0])
	assert.Equal(t, Preamble(react.UIPrompts[0]), react.Prompts[1])

	node, err := c.Template(Node)
	require.NoError(t, err)
	require.Len(t, node.Prompts, 1)
	assert.Equal(t, c.Seeds[Node], node.UIPrompts[0])

	_, err = c.Template(Archetype("cobol"))
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestPreamble(t *testing.T) {
	want := "Here is an artifact that contains all files of the project visible to you.\n" +
		"Consider the contents of ALL files in the project.\n\n" +
		"<boltArtifact/>" +
		"\n\nHere is a list of files that exist on the file system but are not being shown to you:\n\n" +
		"  - .gitignore\n  - package-lock.json\n"
	assert.Equal(t, want, Preamble("<boltArtifact/>"))
}

func TestParseCatalog_MissingSeed(t *testing.T) {
	_, err := ParseCatalog([]byte("system_prompt: hi\nseeds:\n  react: x\n"))
	assert.ErrorContains(t, err, "node")
}
