package stage

import (
	"fmt"
	"sort"
	"sync"
)

// Activator превращает (окружение, argv) в argv запуска внутри окружения.
type Activator interface {
	// Name возвращает имя активатора ("micromamba", "conda", "none").
	Name() string

	// Wrap возвращает argv, запускающий args внутри env.
	Wrap(env string, args []string) []string
}

// launcherActivator — активатор через "<launcher> run -n <env> ...".
type launcherActivator struct {
	name   string
	prefix []string
}

// Name возвращает имя активатора.
func (a *launcherActivator) Name() string {
	return a.name
}

// Wrap добавляет префикс лаунчера. Пустой env — argv без изменений.
func (a *launcherActivator) Wrap(env string, args []string) []string {
	if env == "" || len(args) == 0 {
		return append([]string(nil), args...)
	}
	argv := make([]string, 0, len(a.prefix)+2+len(args))
	argv = append(argv, a.prefix...)
	argv = append(argv, "-n", env)
	argv = append(argv, args...)
	return argv
}

// NewMicromambaActivator — micromamba run -n <env> ...
func NewMicromambaActivator() Activator {
	return &launcherActivator{name: "micromamba", prefix: []string{"micromamba", "run"}}
}

// NewCondaActivator — conda run --no-capture-output -n <env> ...
//
// --no-capture-output нужен, иначе conda буферизует вывод до завершения.
func NewCondaActivator() Activator {
	return &launcherActivator{name: "conda", prefix: []string{"conda", "run", "--no-capture-output"}}
}

// noneActivator запускает argv как есть.
type noneActivator struct{}

// NewNoneActivator возвращает активатор без окружения.
func NewNoneActivator() Activator {
	return noneActivator{}
}

func (noneActivator) Name() string { return "none" }

func (noneActivator) Wrap(_ string, args []string) []string {
	return append([]string(nil), args...)
}

// Registry — реестр активаторов по имени.
type Registry struct {
	mu         sync.RWMutex
	activators map[string]Activator
}

// NewRegistry создаёт реестр с активаторами по умолчанию.
//
// Регистрирует: micromamba, conda, none.
func NewRegistry() *Registry {
	r := &Registry{activators: make(map[string]Activator)}
	r.Register(NewMicromambaActivator())
	r.Register(NewCondaActivator())
	r.Register(NewNoneActivator())
	return r
}

// Register добавляет активатор. Активатор с тем же именем перезаписывается.
func (r *Registry) Register(a Activator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activators[a.Name()] = a
}

// Get возвращает активатор по имени.
func (r *Registry) Get(name string) (Activator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActivator, name)
	}
	return a, nil
}

// Names возвращает отсортированный список имён активаторов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.activators))
	for n := range r.activators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
