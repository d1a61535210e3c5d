package rundir

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/meshforge/internal/domain"
)

// writeFile создаёт файл с родительскими директориями.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// mkdirs создаёт директории внутри root.
func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0o755))
	}
}

// snapshot возвращает дерево root: относительный путь → содержимое.
// Директории помечаются значением "<dir>".
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			tree[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

// --- Allocator ---

func TestNextRunDir_EmptyRoot(t *testing.T) {
	root := t.TempDir()

	dir, n, err := NextRunDir(root)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, filepath.Join(root, "run_1"), dir)
}

func TestNextRunDir_MissingRootIsCreated(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist")

	dir, n, err := NextRunDir(root)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, filepath.Join(root, "run_1"), dir)
	assert.DirExists(t, root)
	assert.NoDirExists(t, dir, "run dir itself must not be created")
}

func TestNextRunDir_SkipsGapsAndForeignNames(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_1", "run_2", "run_7", "notes")

	dir, n, err := NextRunDir(root)
	require.NoError(t, err)

	assert.Equal(t, 8, n)
	assert.Equal(t, filepath.Join(root, "run_8"), dir)
}

func TestNextRunDir_IgnoresNonMatching(t *testing.T) {
	tests := []struct {
		name     string
		dirs     []string
		files    []string
		expected int
	}{
		{"no runs", []string{"notes", "mesh"}, nil, 1},
		{"suffix garbage", []string{"run_3", "run_4b", "run_", "run_x"}, nil, 4},
		{"prefix garbage", []string{"old_run_9", "run_2"}, nil, 3},
		{"file named like run", []string{"run_1"}, []string{"run_50"}, 2},
		{"leading zeros", []string{"run_007"}, nil, 8},
		{"consecutive", []string{"run_1", "run_2", "run_3"}, nil, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tc.dirs...)
			for _, f := range tc.files {
				writeFile(t, filepath.Join(root, f), "x")
			}

			_, n, err := NextRunDir(root)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestAllocate_CreatesLayout(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_4")

	layout, err := Allocate(root, "", "")
	require.NoError(t, err)

	assert.Equal(t, 5, layout.Number)
	assert.Equal(t, "run_5", layout.Name())
	assert.DirExists(t, layout.Inputs)
	assert.DirExists(t, layout.Stage)
	assert.DirExists(t, layout.Final)
	assert.Equal(t, filepath.Join(layout.Root, DefaultStageName), layout.Stage)

	// Номер занят — следующий вызов выдаёт новый
	next, err := Allocate(root, "", "")
	require.NoError(t, err)
	assert.Equal(t, 6, next.Number)
}

func TestParseRunNumber(t *testing.T) {
	n, ok := ParseRunNumber("run_12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = ParseRunNumber("run_12a")
	assert.False(t, ok)

	_, ok = ParseRunNumber("run_99999999999999999999999")
	assert.False(t, ok, "overflow must be ignored")
}

func TestListRuns_Sorted(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_10", "run_2", "run_1", "scratch")

	runs, err := ListRuns(root)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 10}, runs)

	runs, err = ListRuns(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// --- Copier ---

func TestCopyTree_ReplacesStaleDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "a")
	dst := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(src, "x.txt"), "x")
	writeFile(t, filepath.Join(src, "b", "y.txt"), "y")
	writeFile(t, filepath.Join(dst, "stale.txt"), "old")

	require.NoError(t, CopyTree(src, dst))

	want := map[string]string{
		"x.txt":   "x",
		"b":       "<dir>",
		"b/y.txt": "y",
	}
	if diff := cmp.Diff(want, snapshot(t, dst)); diff != "" {
		t.Errorf("destination mismatch (-want +got):\n%s", diff)
	}
}

func TestCopyTree_Idempotent(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(src, "img", "front.png"), "png-bytes")
	writeFile(t, filepath.Join(src, "calib.npz"), "npz")

	require.NoError(t, CopyTree(src, dst))
	first := snapshot(t, dst)

	require.NoError(t, CopyTree(src, dst))
	second := snapshot(t, dst)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second copy changed destination (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot(t, src), second); diff != "" {
		t.Errorf("destination differs from source (-src +dst):\n%s", diff)
	}
}

func TestCopyTree_PreservesModTime(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(src, "f.txt"), "f")

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "f.txt"), old, old))

	require.NoError(t, CopyTree(src, dst))

	info, err := os.Stat(filepath.Join(dst, "f.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "mtime %v, want %v", info.ModTime(), old)
}

func TestCopyTree_MissingSource(t *testing.T) {
	base := t.TempDir()
	dst := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(dst, "keep.txt"), "keep")

	err := CopyTree(filepath.Join(base, "nope"), dst)
	require.ErrorIs(t, err, ErrSourceNotFound)

	// Проверка источника выполняется до удаления dst
	assert.FileExists(t, filepath.Join(dst, "keep.txt"))
}

func TestCopyTree_SourceIsFile(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "file.txt")
	writeFile(t, src, "x")

	err := CopyTree(src, filepath.Join(base, "dst"))
	require.ErrorIs(t, err, ErrNotDirectory)
}

// --- Merger ---

func TestMergeOutputs_SkipsRunDirs(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "final")
	dst := filepath.Join(base, "fresh")

	writeFile(t, filepath.Join(src, "mesh.glb"), "glb")
	writeFile(t, filepath.Join(src, "texture.png"), "png")
	writeFile(t, filepath.Join(src, "run_3", "inputs", "a.jpg"), "jpg")

	require.NoError(t, MergeOutputs(src, dst))

	want := map[string]string{
		"mesh.glb":    "glb",
		"texture.png": "png",
	}
	if diff := cmp.Diff(want, snapshot(t, dst)); diff != "" {
		t.Errorf("merge result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOutputs_NeverNestsRunDirs(t *testing.T) {
	base := t.TempDir()
	final := filepath.Join(base, "final")

	writeFile(t, filepath.Join(final, "mesh.glb"), "glb")
	writeFile(t, filepath.Join(final, "run_1", "2_final", "mesh.glb"), "old")
	mkdirs(t, final, "run_2/2_final")

	// Типичный случай: назначение лежит внутри источника
	dst := filepath.Join(final, "run_2", "2_final")
	require.NoError(t, MergeOutputs(final, dst))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, IsRunDir(e.Name()), "run dir %s copied into archive", e.Name())
	}
	assert.FileExists(t, filepath.Join(dst, "mesh.glb"))
}

func TestMergeOutputs_CopiesFileNamedLikeRun(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "final")
	dst := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(src, "run_5"), "a file, not a run")

	require.NoError(t, MergeOutputs(src, dst))
	assert.FileExists(t, filepath.Join(dst, "run_5"))
}

func TestMergeOutputs_ReplacesExisting(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "final")
	dst := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(src, "mesh.glb"), "new")
	writeFile(t, filepath.Join(src, "textures", "albedo.png"), "albedo")

	writeFile(t, filepath.Join(dst, "mesh.glb"), "old")
	writeFile(t, filepath.Join(dst, "textures", "stale.png"), "stale")
	writeFile(t, filepath.Join(dst, "unrelated.txt"), "kept")

	require.NoError(t, MergeOutputs(src, dst))

	want := map[string]string{
		"mesh.glb":            "new",
		"textures":            "<dir>",
		"textures/albedo.png": "albedo",
		"unrelated.txt":       "kept",
	}
	if diff := cmp.Diff(want, snapshot(t, dst)); diff != "" {
		t.Errorf("merge result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOutputs_Idempotent(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "final")
	dst := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(src, "mesh.glb"), "glb")
	writeFile(t, filepath.Join(src, "obj", "body.obj"), "obj")
	mkdirs(t, src, "run_1")

	require.NoError(t, MergeOutputs(src, dst))
	first := snapshot(t, dst)

	require.NoError(t, MergeOutputs(src, dst))
	if diff := cmp.Diff(first, snapshot(t, dst)); diff != "" {
		t.Errorf("second merge changed destination:\n%s", diff)
	}
}

func TestMergeOutputs_MissingSource(t *testing.T) {
	base := t.TempDir()
	err := MergeOutputs(filepath.Join(base, "nope"), filepath.Join(base, "dst"))
	require.ErrorIs(t, err, ErrSourceNotFound)
}

func TestClearOutputs_KeepsRunDirs(t *testing.T) {
	final := t.TempDir()
	writeFile(t, filepath.Join(final, "mesh.glb"), "glb")
	writeFile(t, filepath.Join(final, "obj", "body.obj"), "obj")
	writeFile(t, filepath.Join(final, "run_1", "run.json"), "{}")

	require.NoError(t, ClearOutputs(final))

	want := map[string]string{
		"run_1":          "<dir>",
		"run_1/run.json": "{}",
	}
	if diff := cmp.Diff(want, snapshot(t, final)); diff != "" {
		t.Errorf("clear result mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, ClearOutputs(filepath.Join(final, "missing")))
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stage")
	writeFile(t, filepath.Join(dir, "icon", "mesh.obj"), "obj")

	require.NoError(t, ResetDir(dir))

	assert.DirExists(t, dir)
	assert.Empty(t, snapshot(t, dir))
}

// --- Manifest ---

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	run := &domain.Run{Number: 3, Name: "run_3", Dir: dir, InputDir: "/data/personal"}
	run.MarkRunning()
	run.MarkFailed("deca", "exit status 2")

	require.NoError(t, WriteManifest(dir, run))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, "deca", got.FailedStage)
	assert.Equal(t, 3, got.Number)

	_, err = ReadManifest(t.TempDir())
	require.ErrorIs(t, err, ErrManifestNotFound)
}

func TestReadManifests(t *testing.T) {
	root := t.TempDir()
	for _, n := range []int{2, 10} {
		dir := filepath.Join(root, RunName(n))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		run := &domain.Run{Number: n, Name: RunName(n), Dir: dir}
		run.MarkRunning()
		run.MarkSucceeded()
		require.NoError(t, WriteManifest(dir, run))
	}
	mkdirs(t, root, "run_3", "scene")

	runs, err := ReadManifests(root)
	require.NoError(t, err)

	var names []string
	for _, r := range runs {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"run_2", "run_3", "run_10"}, names); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.RunStatusSucceeded, runs[0].Status)
	assert.Empty(t, runs[1].Status)

	runs, err = ReadManifests(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAllocate_CountsSymlinkedRun(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "final")
	elsewhere := filepath.Join(base, "elsewhere")
	mkdirs(t, root, "run_1", "run_2")
	mkdirs(t, base, "elsewhere")
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, "run_3")))

	runs, err := ListRuns(root)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, runs)

	layout, err := Allocate(root, "", "")
	require.NoError(t, err)
	assert.Equal(t, 4, layout.Number)
	assert.Equal(t, "run_4", layout.Name())
	assert.Empty(t, snapshot(t, elsewhere))
}

func TestListRuns_IgnoresDanglingSymlink(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_1")
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "run_9")))

	runs, err := ListRuns(root)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, runs)
}

func TestFindRun(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_007", "run_2")

	dir, err := FindRun(root, 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run_007"), dir)

	dir, err = FindRun(root, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run_2"), dir)

	_, err = FindRun(root, 3)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteManifest_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	run := &domain.Run{Number: 1, Name: "run_1", Dir: dir}
	run.MarkRunning()
	require.NoError(t, WriteManifest(dir, run))

	run.MarkSucceeded()
	require.NoError(t, WriteManifest(dir, run))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestName, entries[0].Name())

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, got.Status)
}

func TestReadManifests_TruncatedManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "run_1", ManifestName), `{"number":1,"status":"SUCC`)

	dir := filepath.Join(root, "run_2")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	run := &domain.Run{Number: 2, Name: "run_2", Dir: dir}
	run.MarkRunning()
	run.MarkSucceeded()
	require.NoError(t, WriteManifest(dir, run))

	runs, err := ReadManifests(root)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run_1", runs[0].Name)
	assert.Equal(t, 1, runs[0].Number)
	assert.Empty(t, runs[0].Status)
	assert.Contains(t, runs[0].Error, "unmarshal")
	assert.Equal(t, domain.RunStatusSucceeded, runs[1].Status)
}

func TestReadManifests_ZeroPaddedName(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "run_007")

	runs, err := ReadManifests(root)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run_007", runs[0].Name)
	assert.Equal(t, filepath.Join(root, "run_007"), runs[0].Dir)
}
