package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"habitsync/internal/engine"
	"habitsync/internal/habitica"
)

var kindTabs = []habitica.Kind{
	habitica.KindHabit,
	habitica.KindDaily,
	habitica.KindTodo,
	habitica.KindReward,
}

// refreshedMsg arrives whenever the engine finishes a cycle, successful or
// aborted.
type refreshedMsg struct{ ev engine.RefreshEvent }

// actionDoneMsg reports the outcome of a fire-and-forget action.
type actionDoneMsg struct {
	what string
	err  error
}

// Dashboard is the interactive view over the engine.
type Dashboard struct {
	eng    *engine.Engine
	events <-chan engine.RefreshEvent
	cancel func()

	tab      int
	cursor   int
	showNote bool

	width, height int
	spin          spinner.Model
	refreshing    bool
	status        string
	stale         bool

	renderer *glamour.TermRenderer
}

// NewDashboard builds the dashboard model. The caller runs it via bubbletea.
func NewDashboard(eng *engine.Engine) *Dashboard {
	events, cancel := eng.Subscribe()
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(76))

	return &Dashboard{
		eng:      eng,
		events:   events,
		cancel:   cancel,
		tab:      1, // dailies are where the damage is
		spin:     sp,
		renderer: renderer,
	}
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.waitForRefresh(), d.spin.Tick)
}

// waitForRefresh blocks on the engine's notification channel and feeds the
// event back into the update loop. Re-issued after every message.
func (d *Dashboard) waitForRefresh() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-d.events
		if !ok {
			return nil
		}
		return refreshedMsg{ev: ev}
	}
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		return d, nil

	case refreshedMsg:
		d.refreshing = false
		if msg.ev.Err != nil {
			d.stale = true
			d.status = "refresh failed, showing stale data"
		} else {
			d.stale = false
			d.status = "refreshed " + msg.ev.At.Format("15:04:05")
		}
		d.clampCursor()
		return d, d.waitForRefresh()

	case actionDoneMsg:
		if msg.err != nil {
			d.status = fmt.Sprintf("%s failed: %v", msg.what, msg.err)
		} else {
			d.status = msg.what + " ok"
		}
		return d, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spin, cmd = d.spin.Update(msg)
		return d, cmd

	case tea.KeyMsg:
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		d.cancel()
		return d, tea.Quit

	case "tab", "l", "right":
		d.tab = (d.tab + 1) % len(kindTabs)
		d.cursor = 0
	case "shift+tab", "h", "left":
		d.tab = (d.tab + len(kindTabs) - 1) % len(kindTabs)
		d.cursor = 0

	case "j", "down":
		d.cursor++
		d.clampCursor()
	case "k", "up":
		d.cursor--
		d.clampCursor()

	case "enter":
		d.showNote = !d.showNote

	case "r":
		if !d.refreshing {
			d.refreshing = true
			d.status = "refreshing..."
			eng := d.eng
			return d, func() tea.Msg {
				// Outcome arrives through the subscription; a rejected
				// duplicate attempt is not worth surfacing.
				_ = eng.Refresh(context.Background())
				return nil
			}
		}

	case "s":
		eng := d.eng
		return d, func() tea.Msg {
			_, err := eng.ToggleSleep(context.Background())
			return actionDoneMsg{what: "sleep toggle", err: err}
		}

	case "+", " ":
		if rec, ok := d.selected(); ok {
			eng := d.eng
			return d, func() tea.Msg {
				err := eng.ScoreTask(context.Background(), rec.ID, true)
				return actionDoneMsg{what: "score up", err: err}
			}
		}
	case "-":
		if rec, ok := d.selected(); ok && rec.Kind == habitica.KindHabit {
			eng := d.eng
			return d, func() tea.Msg {
				err := eng.ScoreTask(context.Background(), rec.ID, false)
				return actionDoneMsg{what: "score down", err: err}
			}
		}
	}
	return d, nil
}

func (d *Dashboard) rows() []habitica.TaskRecord {
	return d.eng.Tasks(engine.TaskFilter{Kind: kindTabs[d.tab]})
}

func (d *Dashboard) selected() (habitica.TaskRecord, bool) {
	rows := d.rows()
	if d.cursor < 0 || d.cursor >= len(rows) {
		return habitica.TaskRecord{}, false
	}
	return rows[d.cursor], true
}

func (d *Dashboard) clampCursor() {
	n := len(d.rows())
	if d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.headerView())
	b.WriteString("\n")
	b.WriteString(d.tabsView())
	b.WriteString("\n")
	b.WriteString(d.tableView())

	if d.showNote {
		if rec, ok := d.selected(); ok && rec.Notes != "" {
			b.WriteString("\n")
			b.WriteString(d.notesView(rec))
		}
	}

	b.WriteString("\n")
	b.WriteString(d.statusView())
	return b.String()
}

func (d *Dashboard) headerView() string {
	snap := d.eng.Stats()
	hp := fmt.Sprintf("hp %.0f/%.0f", snap.HP, snap.MaxHP)
	mp := fmt.Sprintf("mp %.0f/%.0f", snap.MP, snap.MaxMP)
	lvl := fmt.Sprintf("lvl %d %s", snap.Level, snap.Class)
	gp := fmt.Sprintf("%.1f gp", snap.GP)

	parts := []string{titleStyle.Render("habitsync"), lvl, hp, mp, gp}
	if snap.Sleeping {
		parts = append(parts, "resting in the inn")
	}
	if snap.QuestActive {
		parts = append(parts, "on quest")
	}
	if snap.DamageToSelf > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("at risk: %.1f hp", snap.DamageToSelf)))
	}
	return headerStyle.Render(strings.Join(parts, "  |  "))
}

func (d *Dashboard) tabsView() string {
	snap := d.eng.Stats()
	tabs := make([]string, len(kindTabs))
	for i, kind := range kindTabs {
		label := fmt.Sprintf("%s (%d)", kind, snap.Totals[kind])
		if i == d.tab {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (d *Dashboard) tableView() string {
	rows := d.rows()
	if len(rows) == 0 {
		return statusLineStyle.Render("  nothing here")
	}

	var b strings.Builder
	for i, rec := range rows {
		line := fmt.Sprintf("%-50.50s %-8s", rec.Text, rec.Status)
		if rec.Kind == habitica.KindDaily {
			if rec.Streak > 0 {
				line += fmt.Sprintf(" streak %-3d", rec.Streak)
			} else {
				line += strings.Repeat(" ", 11)
			}
			if rec.DamageToSelf != nil {
				line += fmt.Sprintf(" -%.1f hp", *rec.DamageToSelf)
			}
			if rec.DamageToParty != nil {
				line += fmt.Sprintf(" (party -%.1f)", *rec.DamageToParty)
			}
		}
		if len(rec.Checklist) > 0 {
			line += fmt.Sprintf(" [%d%%]", int(rec.ChecklistRatio*100))
		}

		styled := styleForStatus(rec.Status).Render(line)
		if i == d.cursor {
			styled = selectedRowStyle.Render("> " + line)
		} else {
			styled = "  " + styled
		}
		b.WriteString(styled)
		b.WriteString("\n")
	}
	return b.String()
}

func (d *Dashboard) notesView(rec habitica.TaskRecord) string {
	body := rec.Notes
	if d.renderer != nil {
		if out, err := d.renderer.Render(rec.Notes); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return detailStyle.Render(body)
}

func (d *Dashboard) statusView() string {
	left := d.status
	if d.refreshing {
		left = d.spin.View() + " refreshing"
	}
	if d.stale {
		left = errorStyle.Render("stale") + " " + left
	}
	help := "tab: kind  j/k: move  +/-: score  s: sleep  r: refresh  enter: notes  q: quit"
	return statusLineStyle.Render(left + "\n" + help)
}
