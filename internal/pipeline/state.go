package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/engine"
)

// State — состояние контроллера.
type State string

const (
	StateAllocateRun    State = "ALLOCATE_RUN"
	StateSnapshotInput  State = "SNAPSHOT_INPUT"
	StateClearStage     State = "CLEAR_STAGE"
	StateClearFinal     State = "CLEAR_FINAL"
	StateArchiveStaging State = "ARCHIVE_STAGING"
	StateArchiveFinal   State = "ARCHIVE_FINAL"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// stageStatePrefix — префикс состояния выполнения стадии.
const stageStatePrefix = "STAGE:"

// StageState возвращает состояние выполнения стадии id.
func StageState(id string) State {
	return State(stageStatePrefix + id)
}

// StageID возвращает ID стадии, если состояние — STAGE:<id>.
func (s State) StageID() (string, bool) {
	return strings.CutPrefix(string(s), stageStatePrefix)
}

// IsTerminal возвращает true для DONE и FAILED.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition — переход в состояние.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся в начале Controller.Run и живёт до его завершения.
// Содержит:
//   - Run (то, что уйдёт в run.json)
//   - Контекст для шаблонов аргументов стадий
//   - Историю переходов конечного автомата
type RunState struct {
	// Run — данные run.
	Run *domain.Run

	// Context — контекст для рендеринга аргументов стадий.
	Context *engine.Context

	transitions []Transition
	mu          sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run) *RunState {
	return &RunState{
		Run:     run,
		Context: engine.NewContext(nil),
	}
}

// Enter переводит автомат в состояние s.
func (rs *RunState) Enter(s State) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.transitions = append(rs.transitions, Transition{State: s, At: time.Now()})
	rs.Run.State = string(s)
}

// Current возвращает текущее состояние.
func (rs *RunState) Current() State {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if len(rs.transitions) == 0 {
		return ""
	}
	return rs.transitions[len(rs.transitions)-1].State
}

// Transitions возвращает копию истории переходов.
func (rs *RunState) Transitions() []Transition {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return append([]Transition(nil), rs.transitions...)
}

// States возвращает последовательность состояний.
func (rs *RunState) States() []State {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	states := make([]State, len(rs.transitions))
	for i, t := range rs.transitions {
		states[i] = t.State
	}
	return states
}
