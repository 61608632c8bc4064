package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukimemi/spyrun/internal/config"
)

func spyFixture() config.Spy {
	return config.Spy{
		Name:   "logs",
		Events: []string{"Create", "Modify"},
		Patterns: []config.Pattern{
			{Pattern: `\.cmd$`, Cmd: "cmd.exe"},
			{Pattern: `\.ps1$`, Cmd: "powershell", Arg: []string{"-File", "{{.event_path}}"}},
		},
	}
}

func TestMatch_SelectsFirstMatchingPattern(t *testing.T) {
	m, err := New(spyFixture())
	require.NoError(t, err)

	p, ok := m.Match(Event{Kind: "Create", Paths: []string{"a/b.ps1"}})
	require.True(t, ok)
	assert.Equal(t, "powershell", p.Cmd)
}

func TestMatch_RejectsUnlistedEventKind(t *testing.T) {
	m, err := New(spyFixture())
	require.NoError(t, err)

	_, ok := m.Match(Event{Kind: "Remove", Paths: []string{"a/b.ps1"}})
	assert.False(t, ok)
}

func TestMatch_RejectsEmptyPaths(t *testing.T) {
	m, err := New(spyFixture())
	require.NoError(t, err)

	_, ok := m.Match(Event{Kind: "Create", Paths: nil})
	assert.False(t, ok)
}

func TestMatch_NoPatternMatches(t *testing.T) {
	m, err := New(spyFixture())
	require.NoError(t, err)

	_, ok := m.Match(Event{Kind: "Create", Paths: []string{"a/b.txt"}})
	assert.False(t, ok)
}

func TestMatch_IsPureForSameInputs(t *testing.T) {
	m, err := New(spyFixture())
	require.NoError(t, err)

	ev := Event{Kind: "Modify", Paths: []string{"x/y.cmd"}}
	p1, ok1 := m.Match(ev)
	p2, ok2 := m.Match(ev)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, p1, p2)
}

func TestNew_RejectsBadRegex(t *testing.T) {
	spy := spyFixture()
	spy.Patterns = []config.Pattern{{Pattern: "(unclosed"}}
	_, err := New(spy)
	assert.Error(t, err)
}

func TestMappedKind_UnknownBecomesOther(t *testing.T) {
	assert.Equal(t, "Other", MappedKind("Chmod"))
	assert.Equal(t, "Create", MappedKind("Create"))
}
