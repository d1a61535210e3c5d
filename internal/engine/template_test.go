package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/meshforge/internal/domain"
)

func TestNewContext(t *testing.T) {
	// С nil inputs
	ctx := NewContext(nil)
	assert.NotNil(t, ctx.Inputs)
	assert.NotNil(t, ctx.Dirs)
	assert.NotNil(t, ctx.Env)

	// С inputs
	ctx = NewContext(map[string]any{"key": "value"})
	assert.Equal(t, "value", ctx.Inputs["key"])
}

func newDirsContext() *Context {
	ctx := NewContext(map[string]any{"prompt": "a quiet forest", "max_side": 2048})
	ctx.SetDir(DirInput, "/data/personal")
	ctx.SetDir(DirStage, "/proj/1_stage")
	ctx.SetDir(DirFinal, "/proj/2_final")
	ctx.SetDir(DirProject, "/proj")
	ctx.SetEnv("HOME", "/home/user")
	return ctx
}

func TestRender(t *testing.T) {
	ctx := newDirsContext()

	tests := []struct {
		name     string
		tmpl     string
		expected string
	}{
		{"plain string", "python", "python"},
		{"dir", "{{ .Dirs.input }}", "/data/personal"},
		{"dir with suffix", "{{ .Dirs.stage }}/icon", "/proj/1_stage/icon"},
		{"input", "{{ .Inputs.prompt }}", "a quiet forest"},
		{"int input", "{{ .Inputs.max_side }}", "2048"},
		{"env", "{{ .Env.HOME }}", "/home/user"},
		{"join", `{{ join .Dirs.project "4_scripts" "run_full_batch.py" }}`, "/proj/4_scripts/run_full_batch.py"},
		{"stem", `{{ stem "/in/photo.final.jpg" }}`, "photo.final"},
		{"default", `{{ default "x" "" }}`, "x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.tmpl, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestRender_MissingKeyIsError(t *testing.T) {
	ctx := newDirsContext()

	_, err := Render("{{ .Dirs.nope }}", ctx)
	require.ErrorIs(t, err, ErrTemplateRender)

	_, err = Render("{{ .Inputs.nope }}", ctx)
	require.ErrorIs(t, err, ErrTemplateRender)
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .Dirs.input ", newDirsContext())
	require.ErrorIs(t, err, ErrTemplateParse)
}

func TestRenderArgs_KeepsArgumentBoundaries(t *testing.T) {
	ctx := NewContext(nil)
	ctx.SetDir(DirInput, "/data/my photos")

	args, err := RenderArgs([]string{"python", "demo.py", "-i", "{{ .Dirs.input }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "demo.py", "-i", "/data/my photos"}, args)
}

func TestRenderArgs_ReportsArgIndex(t *testing.T) {
	_, err := RenderArgs([]string{"ok", "{{ .Dirs.missing }}"}, NewContext(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg 1")
}

func TestMustRender_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRender("{{ .Dirs.x }}", NewContext(nil)) })
	assert.Equal(t, "a", MustRender("a", nil))
}

// --- ValidateStages ---

func validStages() []domain.StageDef {
	return []domain.StageDef{
		{ID: "icon", Env: "icon_env", Args: []string{"python", "-m", "apps.infer", "-in_dir", "{{ .Dirs.input }}"}},
		{ID: "deca", Env: "deca_env", Args: []string{"python", "demos/demo_reconstruct.py"}},
	}
}

func TestValidateStages_Valid(t *testing.T) {
	require.NoError(t, ValidateStages(validStages()))
}

func TestValidateStages_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]domain.StageDef) []domain.StageDef
		want   error
	}{
		{"empty", func([]domain.StageDef) []domain.StageDef { return nil }, ErrEmptyStages},
		{"empty id", func(s []domain.StageDef) []domain.StageDef { s[1].ID = ""; return s }, ErrEmptyStageID},
		{"duplicate id", func(s []domain.StageDef) []domain.StageDef { s[1].ID = "icon"; return s }, ErrDuplicateStageID},
		{"empty env", func(s []domain.StageDef) []domain.StageDef { s[0].Env = ""; return s }, ErrEmptyEnv},
		{"empty args", func(s []domain.StageDef) []domain.StageDef { s[0].Args = nil; return s }, ErrEmptyArgs},
		{"bad template", func(s []domain.StageDef) []domain.StageDef { s[1].Args = []string{"{{ .Dirs.input"}; return s }, ErrTemplateParse},
		{"bad dir template", func(s []domain.StageDef) []domain.StageDef { s[1].Dir = "{{ oops"; return s }, ErrTemplateParse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStages(tc.mutate(validStages()))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ValidateStages([]domain.StageDef{{ID: "merge", Env: "icon_env"}})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "merge", vErr.StageID)
	assert.Equal(t, "args", vErr.Field)
	assert.Equal(t, "stage merge: stage has empty args", err.Error())
}
