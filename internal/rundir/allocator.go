package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// runDirPattern — шаблон имени директории run.
var runDirPattern = regexp.MustCompile(`^run_(\d+)$`)

// RunDirPrefix — префикс имени директории run.
const RunDirPrefix = "run_"

// Имена поддиректорий внутри run по умолчанию.
const (
	DefaultInputsName = "inputs"
	DefaultStageName  = "1_stage"
	DefaultFinalName  = "2_final"
)

// IsRunDir проверяет, совпадает ли имя с шаблоном run_<N>.
func IsRunDir(name string) bool {
	return runDirPattern.MatchString(name)
}

// ParseRunNumber извлекает N из имени run_<N>.
func ParseRunNumber(name string) (int, bool) {
	m := runDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// переполнение int — такое имя не считается run
		return 0, false
	}
	return n, true
}

// RunName возвращает имя директории для номера n.
func RunName(n int) string {
	return RunDirPrefix + strconv.Itoa(n)
}

// runEntry — директория run в root под своим настоящим именем
// (run_007 и run_7 дают один номер, но разные пути).
type runEntry struct {
	number int
	name   string
}

// scanRuns возвращает директории run в root, отсортированные по номеру.
// Симлинк на директорию считается run, как и в MergeOutputs.
func scanRuns(root string) ([]runEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var runs []runEntry
	for _, e := range entries {
		if !isArchivedRun(root, e) {
			continue
		}
		if n, ok := ParseRunNumber(e.Name()); ok {
			runs = append(runs, runEntry{number: n, name: e.Name()})
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].number != runs[j].number {
			return runs[i].number < runs[j].number
		}
		return runs[i].name < runs[j].name
	})
	return runs, nil
}

// ListRuns возвращает номера существующих run в root по возрастанию.
// Несуществующий root — пустой список без ошибки.
func ListRuns(root string) ([]int, error) {
	entries, err := scanRuns(root)
	if err != nil {
		return nil, err
	}

	runs := make([]int, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, e.number)
	}
	return runs, nil
}

// FindRun возвращает путь директории run с номером n.
// Имя берётся с диска, поэтому run_007 находится по номеру 7.
func FindRun(root string, n int) (string, error) {
	entries, err := scanRuns(root)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.number == n {
			return filepath.Join(root, e.name), nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrRunNotFound, RunName(n), root)
}

// NextRunDir возвращает путь следующей директории run в root.
//
// Создаёт root, если его нет. Номер — max(существующие)+1, либо 1.
// Сама директория run не создаётся.
func NextRunDir(root string) (string, int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", 0, fmt.Errorf("create output root: %w", err)
	}

	runs, err := ListRuns(root)
	if err != nil {
		return "", 0, err
	}

	next := 1
	if len(runs) > 0 {
		next = runs[len(runs)-1] + 1
	}

	return filepath.Join(root, RunName(next)), next, nil
}

// Layout — пути директории run.
type Layout struct {
	// Number — номер run.
	Number int

	// Root — директория run_<N>.
	Root string

	// Inputs — снапшот входных данных.
	Inputs string

	// Stage — копия staging-директории.
	Stage string

	// Final — копия финальных результатов.
	Final string
}

// Name возвращает имя директории run.
func (l *Layout) Name() string {
	return filepath.Base(l.Root)
}

// Allocate выделяет новую директорию run в root и создаёт её поддиректории.
//
// После Allocate номер занят: даже если run упадёт,
// следующий вызов вернёт номер больше.
func Allocate(root, stageName, finalName string) (*Layout, error) {
	if stageName == "" {
		stageName = DefaultStageName
	}
	if finalName == "" {
		finalName = DefaultFinalName
	}

	dir, n, err := NextRunDir(root)
	if err != nil {
		return nil, err
	}

	layout := &Layout{
		Number: n,
		Root:   dir,
		Inputs: filepath.Join(dir, DefaultInputsName),
		Stage:  filepath.Join(dir, stageName),
		Final:  filepath.Join(dir, finalName),
	}

	for _, d := range []string{layout.Inputs, layout.Stage, layout.Final} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}

	return layout, nil
}
