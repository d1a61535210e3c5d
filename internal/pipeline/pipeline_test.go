package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/engine"
	"github.com/shaiso/meshforge/internal/rundir"
	"github.com/shaiso/meshforge/internal/stage"
)

// --- Fakes ---

// fakeRunner записывает invocations и выполняет действие по ID стадии.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []domain.Invocation
	actions map[string]func(inv domain.Invocation) error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{actions: make(map[string]func(domain.Invocation) error)}
}

func (f *fakeRunner) Run(_ context.Context, inv domain.Invocation) error {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()

	// первый аргумент тестовых стадий — ID стадии
	if act, ok := f.actions[inv.Args[0]]; ok {
		return act(inv)
	}
	return nil
}

func (f *fakeRunner) stageIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.calls))
	for i, c := range f.calls {
		ids[i] = c.Args[0]
	}
	return ids
}

type fakeLedger struct {
	runs   []domain.RunStatus
	stages []string
	err    error
}

func (l *fakeLedger) RecordRun(_ context.Context, run *domain.Run) error {
	l.runs = append(l.runs, run.Status)
	return l.err
}

func (l *fakeLedger) RecordStage(_ context.Context, _ *domain.Run, res domain.StageResult) error {
	l.stages = append(l.stages, res.StageID+":"+string(res.Status))
	return l.err
}

type fakeMetrics struct {
	runs   []string
	stages []string
}

func (m *fakeMetrics) ObserveRun(status string, _ time.Time) {
	m.runs = append(m.runs, status)
}

func (m *fakeMetrics) ObserveStage(stageID, status string, _ time.Duration) {
	m.stages = append(m.stages, stageID+":"+status)
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, run *domain.Run) error {
	a.archived = append(a.archived, run.Name)
	return a.err
}

// --- Fixtures ---

type project struct {
	root  string
	input string
	stage string
	final string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	p := project{
		root:  root,
		input: filepath.Join(root, "0_data", "personal"),
		stage: filepath.Join(root, "1_stage"),
		final: filepath.Join(root, "2_final"),
	}
	writeFile(t, filepath.Join(p.input, "person.jpg"), "jpeg")
	return p
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testStages() []domain.StageDef {
	return []domain.StageDef{
		{ID: "icon", Env: "icon_env", Args: []string{"icon", "-in_dir", "{{ .Dirs.input }}", "-out_dir", `{{ join .Dirs.stage "icon" }}`}},
		{ID: "deca", Env: "deca_env", Args: []string{"deca", "-i", "{{ .Dirs.input }}", "-s", `{{ join .Dirs.stage "deca" }}`}},
		{ID: "merge", Env: "icon_env", Args: []string{"merge", `{{ join .Dirs.project "4_scripts" "run_full_batch.py" }}`}},
	}
}

// outputsRunner — стадии пишут результаты в staging/final, как настоящие инструменты.
func outputsRunner(p project) *fakeRunner {
	r := newFakeRunner()
	r.actions["icon"] = func(inv domain.Invocation) error {
		return writeOutput(filepath.Join(inv.Args[4], "mesh.obj"), "icon")
	}
	r.actions["deca"] = func(inv domain.Invocation) error {
		return writeOutput(filepath.Join(inv.Args[4], "face.obj"), "deca")
	}
	r.actions["merge"] = func(domain.Invocation) error {
		return writeOutput(filepath.Join(p.final, "textured.obj"), "merged")
	}
	return r
}

func writeOutput(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func newController(t *testing.T, p project, runner stage.Runner, mutate ...func(*Config)) *Controller {
	t.Helper()
	cfg := Config{
		Paths: Paths{
			ProjectRoot: p.root,
			Input:       p.input,
			Stage:       p.stage,
			Final:       p.final,
		},
		Stages: testStages(),
		Runner: runner,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// --- Tests ---

func TestController_Success(t *testing.T) {
	p := newProject(t)
	writeFile(t, filepath.Join(p.final, "run_1", "old.txt"), "old run")
	writeFile(t, filepath.Join(p.final, "latest.txt"), "latest")

	runner := outputsRunner(p)
	c := newController(t, p, runner)

	rs, err := c.Execute(context.Background(), "")
	require.NoError(t, err)
	run := rs.Run

	assert.Equal(t, 2, run.Number)
	assert.Equal(t, "run_2", run.Name)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, string(StateDone), run.State)
	assert.Equal(t, []string{"icon", "deca", "merge"}, runner.stageIDs())

	assert.Equal(t, []State{
		StateAllocateRun,
		StateSnapshotInput,
		StageState("icon"),
		StageState("deca"),
		StageState("merge"),
		StateArchiveStaging,
		StateArchiveFinal,
		StateDone,
	}, rs.States())

	runDir := filepath.Join(p.final, "run_2")
	assert.Equal(t, "jpeg", readFile(t, filepath.Join(runDir, "inputs", "person.jpg")))
	assert.Equal(t, "icon", readFile(t, filepath.Join(runDir, "1_stage", "icon", "mesh.obj")))
	assert.Equal(t, "deca", readFile(t, filepath.Join(runDir, "1_stage", "deca", "face.obj")))
	assert.Equal(t, "merged", readFile(t, filepath.Join(runDir, "2_final", "textured.obj")))
	assert.Equal(t, "latest", readFile(t, filepath.Join(runDir, "2_final", "latest.txt")))

	// архивы прошлых run не вкладываются в новый
	assert.NoDirExists(t, filepath.Join(runDir, "2_final", "run_1"))
	assert.NoDirExists(t, filepath.Join(runDir, "2_final", "run_2"))

	m, err := rundir.ReadManifest(runDir)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, m.Status)
	require.Len(t, m.Stages, 3)
	for _, s := range m.Stages {
		assert.Equal(t, domain.StageStatusSucceeded, s.Status)
	}
}

func TestController_RendersInvocations(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	c := newController(t, p, runner, func(cfg *Config) {
		cfg.Stages[0].Dir = "{{ .Dirs.icon }}"
		cfg.Paths.Dirs = map[string]string{"icon": "/models/ICON"}
	})

	_, err := c.Run(context.Background(), p.input)
	require.NoError(t, err)
	require.Len(t, runner.calls, 3)

	icon := runner.calls[0]
	assert.Equal(t, "icon_env", icon.Env)
	assert.Equal(t, "/models/ICON", icon.Dir)
	assert.Equal(t, []string{"icon", "-in_dir", p.input, "-out_dir", filepath.Join(p.stage, "icon")}, icon.Args)

	merge := runner.calls[2]
	assert.Equal(t, []string{"merge", filepath.Join(p.root, "4_scripts", "run_full_batch.py")}, merge.Args)
	assert.Empty(t, merge.Dir)
}

func TestController_RelativeStageDir(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	c := newController(t, p, runner, func(cfg *Config) {
		cfg.Stages[1].Dir = "3_models/DECA"
	})

	_, err := c.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.root, "3_models", "DECA"), runner.calls[1].Dir)
}

func TestController_StageFailureStopsPipeline(t *testing.T) {
	p := newProject(t)
	runner := outputsRunner(p)
	runner.actions["deca"] = func(inv domain.Invocation) error {
		return &stage.ExitError{Env: inv.Env, Args: inv.Args, ExitCode: 2}
	}
	metrics := &fakeMetrics{}
	c := newController(t, p, runner, func(cfg *Config) { cfg.Metrics = metrics })

	rs, err := c.Execute(context.Background(), "")
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "deca", stageErr.StageID)
	assert.Equal(t, StageState("deca"), stageErr.State)
	require.ErrorIs(t, err, stage.ErrProcessFailed)
	assert.Equal(t, 2, ExitCode(err))

	// merge не запускался
	assert.Equal(t, []string{"icon", "deca"}, runner.stageIDs())
	assert.Equal(t, []State{
		StateAllocateRun,
		StateSnapshotInput,
		StageState("icon"),
		StageState("deca"),
		StateFailed,
	}, rs.States())

	run := rs.Run
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "deca", run.FailedStage)
	require.Len(t, run.Stages, 2)
	assert.Equal(t, 2, run.Stages[1].ExitCode)

	// без archive_on_failure staging не архивируется, но run.json записан
	runDir := filepath.Join(p.final, "run_1")
	assert.NoFileExists(t, filepath.Join(runDir, "1_stage", "icon", "mesh.obj"))
	m, err := rundir.ReadManifest(runDir)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, m.Status)
	assert.Equal(t, "deca", m.FailedStage)

	assert.Equal(t, []string{"icon:SUCCEEDED", "deca:FAILED"}, metrics.stages)
	assert.Equal(t, []string{"FAILED"}, metrics.runs)
}

func TestController_ArchiveOnFailure(t *testing.T) {
	p := newProject(t)
	runner := outputsRunner(p)
	runner.actions["merge"] = func(domain.Invocation) error {
		return &stage.ExitError{ExitCode: 1}
	}
	c := newController(t, p, runner, func(cfg *Config) { cfg.ArchiveOnFailure = true })

	rs, err := c.Execute(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, []State{
		StateAllocateRun,
		StateSnapshotInput,
		StageState("icon"),
		StageState("deca"),
		StageState("merge"),
		StateArchiveStaging,
		StateArchiveFinal,
		StateFailed,
	}, rs.States())

	runDir := filepath.Join(p.final, "run_1")
	assert.Equal(t, "icon", readFile(t, filepath.Join(runDir, "1_stage", "icon", "mesh.obj")))
	assert.Equal(t, domain.RunStatusFailed, rs.Run.Status)
}

func TestController_MissingInput(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	c := newController(t, p, runner)

	run, err := c.Run(context.Background(), filepath.Join(p.root, "nope"))
	require.ErrorIs(t, err, ErrMissingInputPath)
	assert.Equal(t, 1, ExitCode(err))

	assert.Empty(t, runner.calls)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Empty(t, run.FailedStage)

	// номер run уже занят
	assert.DirExists(t, filepath.Join(p.final, "run_1"))
	next, _, err := rundir.NextRunDir(p.final)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.final, "run_2"), next)
}

func TestController_FilesystemErrorKeepsCause(t *testing.T) {
	p := newProject(t)
	runner := outputsRunner(p)
	// последняя стадия удаляет общую staging — архивирование не находит источник
	runner.actions["merge"] = func(domain.Invocation) error {
		return os.RemoveAll(p.stage)
	}
	c := newController(t, p, runner)

	run, err := c.Run(context.Background(), "")
	require.ErrorIs(t, err, ErrFilesystem)
	require.ErrorIs(t, err, rundir.ErrSourceNotFound)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Empty(t, run.FailedStage)
}

func TestController_InputIsFile(t *testing.T) {
	p := newProject(t)
	c := newController(t, p, newFakeRunner())

	_, err := c.Run(context.Background(), filepath.Join(p.input, "person.jpg"))
	require.ErrorIs(t, err, ErrMissingInputPath)
}

func TestController_ConsecutiveRuns(t *testing.T) {
	p := newProject(t)
	c := newController(t, p, outputsRunner(p))

	first, err := c.Run(context.Background(), "")
	require.NoError(t, err)
	second, err := c.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "run_1", first.Name)
	assert.Equal(t, "run_2", second.Name)
	// второй run не содержит архив первого
	assert.NoDirExists(t, filepath.Join(p.final, "run_2", "2_final", "run_1"))
}

func TestController_ClearStageAndFinal(t *testing.T) {
	p := newProject(t)
	writeFile(t, filepath.Join(p.stage, "stale", "old.obj"), "stale")
	writeFile(t, filepath.Join(p.final, "stale.obj"), "stale")
	writeFile(t, filepath.Join(p.final, "run_4", "keep.txt"), "keep")

	runner := newFakeRunner()
	c := newController(t, p, runner, func(cfg *Config) {
		cfg.ClearStage = true
		cfg.ClearFinal = true
	})

	rs, err := c.Execute(context.Background(), "")
	require.NoError(t, err)

	states := rs.States()
	assert.Equal(t, []State{StateAllocateRun, StateSnapshotInput, StateClearStage, StateClearFinal}, states[:4])

	assert.NoDirExists(t, filepath.Join(p.stage, "stale"))
	assert.NoFileExists(t, filepath.Join(p.final, "stale.obj"))
	assert.Equal(t, "keep", readFile(t, filepath.Join(p.final, "run_4", "keep.txt")))
	// текущий run тоже пережил очистку
	assert.FileExists(t, filepath.Join(p.final, "run_5", rundir.ManifestName))
}

func TestController_TemplateErrorFailsStage(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	c := newController(t, p, runner, func(cfg *Config) {
		cfg.Stages[0].Args = []string{"icon", "{{ .Dirs.missing }}"}
	})

	run, err := c.Run(context.Background(), "")
	require.ErrorIs(t, err, engine.ErrTemplateRender)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, "icon", run.FailedStage)
	assert.Empty(t, runner.calls)
	require.Len(t, run.Stages, 1)
	assert.Equal(t, -1, run.Stages[0].ExitCode)
}

func TestController_CancelledContext(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	c := newController(t, p, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := c.Run(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "icon", run.FailedStage)
	assert.Empty(t, runner.calls)
}

func TestController_LedgerAndArchiver(t *testing.T) {
	p := newProject(t)
	ledger := &fakeLedger{}
	archiver := &fakeArchiver{}
	c := newController(t, p, newFakeRunner(), func(cfg *Config) {
		cfg.Ledger = ledger
		cfg.Archiver = archiver
	})

	_, err := c.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusSucceeded}, ledger.runs)
	assert.Equal(t, []string{"icon:SUCCEEDED", "deca:SUCCEEDED", "merge:SUCCEEDED"}, ledger.stages)
	assert.Equal(t, []string{"run_1"}, archiver.archived)
}

func TestController_LedgerAndArchiverErrorsAreNotFatal(t *testing.T) {
	p := newProject(t)
	archiver := &fakeArchiver{err: errors.New("minio down")}
	c := newController(t, p, newFakeRunner(), func(cfg *Config) {
		cfg.Ledger = &fakeLedger{err: errors.New("db down")}
		cfg.Archiver = archiver
	})

	run, err := c.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Len(t, archiver.archived, 1)
}

func TestController_FailedRunIsNotUploaded(t *testing.T) {
	p := newProject(t)
	runner := newFakeRunner()
	runner.actions["icon"] = func(domain.Invocation) error { return &stage.ExitError{ExitCode: 9} }
	archiver := &fakeArchiver{}
	c := newController(t, p, runner, func(cfg *Config) { cfg.Archiver = archiver })

	_, err := c.Run(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, archiver.archived)
}

func TestNew_Validation(t *testing.T) {
	p := newProject(t)
	base := Config{
		Paths:  Paths{Stage: p.stage, Final: p.final},
		Stages: testStages(),
		Runner: newFakeRunner(),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no runner", func(c *Config) { c.Runner = nil }, ErrInvalidPipeline},
		{"no final", func(c *Config) { c.Paths.Final = "" }, ErrInvalidPipeline},
		{"no stages", func(c *Config) { c.Stages = nil }, engine.ErrEmptyStages},
		{"duplicate stage", func(c *Config) { c.Stages[2].ID = "icon" }, engine.ErrDuplicateStageID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Stages = testStages()
			tc.mutate(&cfg)
			_, err := New(cfg)
			require.ErrorIs(t, err, ErrInvalidPipeline)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(ErrMissingInputPath))
	assert.Equal(t, 1, ExitCode(ErrFilesystem))
	assert.Equal(t, 7, ExitCode(&StageError{StageID: "x", Err: &stage.ExitError{ExitCode: 7}}))
	// процесс убит сигналом
	assert.Equal(t, 1, ExitCode(&StageError{StageID: "x", Err: &stage.ExitError{ExitCode: -1}}))
	assert.Equal(t, 1, ExitCode(&StageError{StageID: "x", Err: stage.ErrStartFailed}))
}

func TestState(t *testing.T) {
	id, ok := StageState("deca").StageID()
	assert.True(t, ok)
	assert.Equal(t, "deca", id)

	_, ok = StateDone.StageID()
	assert.False(t, ok)

	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateArchiveFinal.IsTerminal())
}
