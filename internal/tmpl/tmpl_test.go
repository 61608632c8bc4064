package tmpl

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_VariableSubstitution(t *testing.T) {
	ctx := Context{"name": "logs"}
	out, err := Render("hello {{.name}}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello logs", out)
}

func TestRender_SprigFunction(t *testing.T) {
	out, err := Render(`{{ "hello" | upper }}`, Context{})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestRender_EnvAndSetenv(t *testing.T) {
	os.Setenv("SPYRUN_TMPL_TEST", "from-env")
	defer os.Unsetenv("SPYRUN_TMPL_TEST")

	out, err := Render(`{{ env "SPYRUN_TMPL_TEST" }}`, Context{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", out)

	out, err = Render(`{{ setenv "SPYRUN_TMPL_TEST2" "val" }}`, Context{})
	require.NoError(t, err)
	assert.Equal(t, "SPYRUN_TMPL_TEST2=val", out)
	assert.Equal(t, "val", os.Getenv("SPYRUN_TMPL_TEST2"))
}

func TestRender_EncDec(t *testing.T) {
	out, err := Render(`{{ "secret" | enc | dec }}`, Context{})
	require.NoError(t, err)
	assert.Equal(t, "secret", out)
}

func TestRenderAll_LaterTemplatesSeeEarlierResults(t *testing.T) {
	ctx := Context{"base": "x"}
	out, err := RenderAll(ctx,
		[2]string{"first", "{{.base}}-1"},
		[2]string{"second", "{{.first}}-2"},
	)
	require.NoError(t, err)
	assert.Equal(t, "x-1", out["first"])
	assert.Equal(t, "x-1-2", out["second"])
}

func TestWithEventPath_Decomposition(t *testing.T) {
	ctx := WithEventPath(Context{}, "a/b.ps1")
	assert.Equal(t, "b.ps1", ctx["event_name"])
	assert.Equal(t, ".ps1", ctx["event_ext"])
	assert.Equal(t, "b", ctx["event_stem"])
	assert.Equal(t, "b", ctx["event_dirname"])
	evtPath, ok := ctx["event_path"].(string)
	require.True(t, ok)
	assert.Contains(t, evtPath, "a/b.ps1")
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .unterminated", Context{})
	assert.Error(t, err)
}
