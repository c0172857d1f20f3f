// Package tui provides the live terminal view of a running execution.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/workforcehq/foreman/internal/orchestrator"
	"github.com/workforcehq/foreman/pkg/models"
)

// UpdateMsg wraps one execution update from the event stream.
type UpdateMsg struct {
	Update models.ExecutionUpdate
}

// StreamClosedMsg signals the event stream ended (terminal status).
type StreamClosedMsg struct{}

// taskRow is the display state of one task.
type taskRow struct {
	id      string
	title   string
	status  models.TaskStatus
	agent   string
	elapsed time.Duration
	err     string
}

// LogEntry is a line in the activity log.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// App is the bubbletea model for a single execution. It consumes the
// execution's event stream and sends control commands back through the
// engine on key presses.
type App struct {
	engine      *orchestrator.Engine
	executionID string
	events      <-chan models.ExecutionUpdate

	progress progress.Model
	percent  float64
	status   models.ExecutionStatus
	reason   string

	tasks []*taskRow
	index map[string]*taskRow
	logs  []LogEntry

	width    int
	height   int
	done     bool
	quitting bool
	ctlErr   string
}

// New creates an App watching one execution. The plan seeds the task
// rows so the full plan is visible before any task starts.
func New(engine *orchestrator.Engine, executionID string, plan *models.Plan, events <-chan models.ExecutionUpdate) *App {
	a := &App{
		engine:      engine,
		executionID: executionID,
		events:      events,
		progress:    progress.New(progress.WithDefaultGradient()),
		status:      models.ExecutionRunning,
		index:       make(map[string]*taskRow),
		width:       80,
	}
	for _, t := range plan.Tasks {
		row := &taskRow{id: t.ID, title: t.Title, status: models.TaskStatusPending}
		a.tasks = append(a.tasks, row)
		a.index[t.ID] = row
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.waitForUpdate()
}

// waitForUpdate blocks on the event stream and converts the next update
// into a message.
func (a *App) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-a.events
		if !ok {
			return StreamClosedMsg{}
		}
		return UpdateMsg{Update: u}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.progress.Width = msg.Width - 8
		if a.progress.Width > 60 {
			a.progress.Width = 60
		}

	case UpdateMsg:
		a.apply(msg.Update)
		return a, a.waitForUpdate()

	case StreamClosedMsg:
		a.done = true
		return a, nil

	case progress.FrameMsg:
		pm, cmd := a.progress.Update(msg)
		a.progress = pm.(progress.Model)
		return a, cmd
	}

	return a, nil
}

// handleKey maps key presses to engine control commands.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.ctlErr = ""
	switch msg.String() {
	case "q", "ctrl+c":
		a.quitting = true
		return a, tea.Quit

	case "p":
		if err := a.engine.Pause(a.executionID); err != nil {
			a.ctlErr = fmt.Sprintf("pause: %v", err)
		}

	case "r":
		// The original stream subscription stays live across pause, so
		// the continuation channel isn't needed here.
		if _, err := a.engine.Resume(a.executionID); err != nil {
			a.ctlErr = fmt.Sprintf("resume: %v", err)
		}

	case "c":
		if err := a.engine.Cancel(a.executionID); err != nil {
			a.ctlErr = fmt.Sprintf("cancel: %v", err)
		}
	}
	return a, nil
}

// apply folds one execution update into the display state.
func (a *App) apply(u models.ExecutionUpdate) {
	switch data := u.Data.(type) {
	case models.StatusData:
		a.status = data.Status
		a.reason = data.Reason
		a.percent = data.Progress / 100
		a.log("execution %s (%s)", data.Status, data.Reason)

	case models.TaskStartData:
		if row := a.index[u.TaskID]; row != nil {
			row.status = models.TaskStatusRunning
			row.agent = data.AgentName
			if row.agent == "" {
				row.agent = data.AgentID
			}
		}
		a.log("▶ %s → %s", data.Title, data.AgentID)

	case models.TaskCompleteData:
		if row := a.index[u.TaskID]; row != nil {
			row.status = models.TaskStatusCompleted
			row.elapsed = time.Duration(data.DurationMs) * time.Millisecond
		}
		a.recomputeProgress()
		a.log("✓ %s (%dms)", data.Title, data.DurationMs)

	case models.TaskErrorData:
		if row := a.index[u.TaskID]; row != nil {
			row.status = models.TaskStatusFailed
			row.err = data.Error
		}
		a.log("✗ %s: %s", data.Title, data.Error)

	case models.AgentMessageData:
		a.log("  %s: %s", data.AgentID, data.Message)
	}

	// Pick up skip transitions that have no dedicated event.
	if a.status.Terminal() {
		a.refreshFromSnapshot()
	}
}

// recomputeProgress recounts completion from the task rows.
func (a *App) recomputeProgress() {
	if len(a.tasks) == 0 {
		return
	}
	completed := 0
	for _, row := range a.tasks {
		if row.status == models.TaskStatusCompleted {
			completed++
		}
	}
	a.percent = float64(completed) / float64(len(a.tasks))
}

// refreshFromSnapshot reconciles row statuses against the engine's final
// state, catching tasks skipped on abort or cancel.
func (a *App) refreshFromSnapshot() {
	exec, err := a.engine.Get(a.executionID)
	if err != nil {
		return
	}
	for _, t := range exec.Tasks {
		if row := a.index[t.ID]; row != nil {
			row.status = t.Status
		}
	}
}

// log appends a formatted line to the activity log, keeping the tail.
func (a *App) log(format string, args ...interface{}) {
	a.logs = append(a.logs, LogEntry{Timestamp: time.Now(), Message: fmt.Sprintf(format, args...)})
	if len(a.logs) > 200 {
		a.logs = a.logs[len(a.logs)-200:]
	}
}
