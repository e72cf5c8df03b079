// Package console hosts the operator terminal UI. Each model owns one
// reject-undo scheduler, so a pending rejection lives as long as the session.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	grievanceuc "civicdesk/internal/usecase/grievance"
	"civicdesk/internal/usecase/rejectundo"
)

const (
	maxShownEvents    = 4
	maxAuditLines     = 8
	countdownInterval = 250 * time.Millisecond
	commitBuffer      = 4
)

// Service is the slice of the grievance service the console drives.
type Service interface {
	List(ctx context.Context, filter grievanceuc.ListFilter) ([]domain.Grievance, error)
	History(ctx context.Context, id string) ([]domain.Event, error)
	Resolve(ctx context.Context, input grievanceuc.ResolveInput) (domain.Grievance, error)
	Reject(ctx context.Context, input grievanceuc.RejectInput) (domain.Grievance, error)
}

type View string

const (
	ViewActive   View = "Active"
	ViewRejected View = "Rejected"
)

type Options struct {
	Operator         string
	Area             string
	RejectUndoWindow time.Duration
	RefreshInterval  time.Duration
}

type operatorModel struct {
	ctx             context.Context
	service         Service
	operator        string
	area            string
	refreshInterval time.Duration

	scheduler       *rejectundo.Scheduler
	commits         chan rejectundo.Commit
	countdownActive bool

	view          View
	all           []domain.Grievance
	items         []domain.Grievance
	selectedIndex int
	history       []domain.Event
	historyFor    string
	status        string
	auditLogs     []string
}

type grievancesLoadedMsg struct {
	items []domain.Grievance
	err   error
}

type historyLoadedMsg struct {
	id     string
	events []domain.Event
	err    error
}

type tickMsg struct{}

type countdownMsg struct{}

type commitMsg struct {
	commit rejectundo.Commit
}

type actionDoneMsg struct {
	action string
	id     string
	result string
	err    error
}

// NewOperatorModel builds the console and its reject-undo scheduler. The
// scheduler is closed when the operator quits.
func NewOperatorModel(ctx context.Context, service Service, options Options) tea.Model {
	return newOperatorModel(ctx, service, options)
}

func newOperatorModel(ctx context.Context, service Service, options Options) *operatorModel {
	if ctx == nil {
		ctx = context.Background()
	}
	operator := strings.TrimSpace(options.Operator)
	if operator == "" {
		operator = "operator"
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	m := &operatorModel{
		ctx:             ctx,
		service:         service,
		operator:        operator,
		area:            strings.TrimSpace(options.Area),
		refreshInterval: interval,
		commits:         make(chan rejectundo.Commit, commitBuffer),
		view:            ViewActive,
		status:          "loading",
	}

	reject := rejectundo.RejectFunc(func(ctx context.Context, id string) (domain.Grievance, error) {
		return service.Reject(ctx, grievanceuc.RejectInput{ID: id, Actor: operator})
	})
	m.scheduler = rejectundo.New(reject, options.RejectUndoWindow,
		rejectundo.WithContext(ctx),
		rejectundo.WithCommitListener(m.deliverCommit),
	)
	return m
}

func (m *operatorModel) Init() tea.Cmd {
	return tea.Batch(m.loadGrievancesCmd(), m.tickCmd(), m.waitCommitCmd())
}

func (m *operatorModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadGrievancesCmd(), m.tickCmd())
	case countdownMsg:
		if _, _, ok := m.scheduler.Pending(); ok {
			return m, m.countdownCmd()
		}
		m.countdownActive = false
		return m, nil
	case grievancesLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.all = msg.items
		m.applyView()
		if len(m.items) == 0 {
			m.status = fmt.Sprintf("no %s grievances", strings.ToLower(string(m.view)))
			return m, nil
		}
		m.status = fmt.Sprintf("refreshed, %d shown", len(m.items))
		return m, m.loadHistoryCmd()
	case historyLoadedMsg:
		selected, ok := m.selected()
		if !ok || selected.ID != msg.id {
			return m, nil
		}
		if msg.err != nil {
			m.history = nil
			m.historyFor = ""
			m.status = "history failed: " + msg.err.Error()
			return m, nil
		}
		m.history = msg.events
		m.historyFor = msg.id
		return m, nil
	case commitMsg:
		if msg.commit.Err != nil {
			m.status = fmt.Sprintf("reject failed: %v", msg.commit.Err)
			m.appendAuditLog("reject", msg.commit.ID, "", msg.commit.Err)
		} else {
			m.status = "rejected " + msg.commit.ID
			m.appendAuditLog("reject", msg.commit.ID, string(msg.commit.Grievance.Status), nil)
		}
		return m, tea.Batch(m.loadGrievancesCmd(), m.waitCommitCmd())
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.id, msg.result, msg.err)
		return m, m.loadGrievancesCmd()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *operatorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if id, _, ok := m.scheduler.Pending(); ok {
			logging.Warn(m.ctx, "pending rejection dropped on exit", slog.String("grievance_id", id))
		}
		m.scheduler.Close()
		return m, tea.Quit
	case "g":
		m.status = "refreshing"
		return m, m.loadGrievancesCmd()
	case "tab", "v":
		if m.view == ViewActive {
			m.view = ViewRejected
		} else {
			m.view = ViewActive
		}
		m.selectedIndex = 0
		m.applyView()
		m.status = "view " + string(m.view)
		return m, m.loadHistoryCmd()
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
			return m, m.loadHistoryCmd()
		}
		return m, nil
	case "down", "j":
		if m.selectedIndex < len(m.items)-1 {
			m.selectedIndex++
			return m, m.loadHistoryCmd()
		}
		return m, nil
	case "r":
		return m, m.resolveCmd()
	case "x":
		return m, m.initiateReject()
	case "u":
		id, ok := m.scheduler.Cancel()
		if !ok {
			m.status = "nothing to undo"
			return m, nil
		}
		m.status = "rejection undone for " + id
		m.appendAuditLog("undo", id, "cancelled", nil)
		return m, nil
	}
	return m, nil
}

func (m *operatorModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	toastStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("124")).Padding(0, 1)

	summary := countStats(m.all)

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Grievance Operator Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"operator=%s area=%s view=%s refresh=%s undo=%s",
		m.operator,
		firstNonEmpty(m.area, "all"),
		m.view,
		m.refreshInterval,
		m.scheduler.Window(),
	)))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("pending=%d high=%d resolved=%d\n\n", summary.pending, summary.high, summary.resolved))

	pendingID, remaining, rejecting := m.scheduler.Pending()

	builder.WriteString(sectionStyle.Render(string(m.view) + " Grievances"))
	builder.WriteString("\n")
	if len(m.items) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.items {
			line := formatRow(item)
			if rejecting && item.ID == pendingID {
				line += " (rejecting)"
			}
			switch {
			case index == m.selectedIndex:
				builder.WriteString(selectedStyle.Render("> " + line))
			case item.Priority == domain.PriorityHigh:
				builder.WriteString("  " + highStyle.Render(line))
			default:
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if selected, ok := m.selected(); !ok {
		builder.WriteString(dimStyle.Render("- no selection"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("ID: %s\n", selected.ID))
		builder.WriteString(fmt.Sprintf("Citizen: %s  Area: %s\n", selected.CitizenName, selected.Area))
		builder.WriteString(fmt.Sprintf("Category: %s  Priority: %s  Sentiment: %s\n", selected.Category, selected.Priority, selected.Sentiment))
		builder.WriteString(fmt.Sprintf("Estimate: %s  Status: %s\n", selected.EstimatedTime, selected.Status))
		builder.WriteString(fmt.Sprintf("Description: %s\n", firstLine(selected.Description)))
		if selected.ImageURL != "" {
			builder.WriteString(fmt.Sprintf("Image: %s\n", selected.ImageURL))
		}
		if selected.AudioURL != "" {
			builder.WriteString(fmt.Sprintf("Audio: %s\n", selected.AudioURL))
		}
		if selected.AdminReply != "" {
			builder.WriteString(fmt.Sprintf("Reply: %s\n", selected.AdminReply))
		}
		builder.WriteString("\nRecent Events:\n")
		if m.historyFor != selected.ID || len(m.history) == 0 {
			builder.WriteString("- none\n")
		} else {
			for _, event := range tailEvents(m.history, maxShownEvents) {
				builder.WriteString(fmt.Sprintf("- %s %s by %s\n", event.CreatedAt.UTC().Format(time.RFC3339), event.Action, event.Actor))
			}
		}
		builder.WriteString("\n")
	}

	if rejecting {
		builder.WriteString(toastStyle.Render(fmt.Sprintf("Rejecting %s in %s  [u] undo", pendingID, formatRemaining(remaining))))
		builder.WriteString("\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	builder.WriteString("- r resolve with default reply\n")
	builder.WriteString("- x reject (undo window)\n")
	builder.WriteString("- u undo pending reject\n")
	builder.WriteString("- tab switch Active/Rejected\n")
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Audit"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line + "\n")
		}
	}
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render("Keys: up/down(j/k) select, g refresh, q quit"))
	return builder.String()
}

func (m *operatorModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *operatorModel) countdownCmd() tea.Cmd {
	return tea.Tick(countdownInterval, func(time.Time) tea.Msg {
		return countdownMsg{}
	})
}

func (m *operatorModel) waitCommitCmd() tea.Cmd {
	commits := m.commits
	return func() tea.Msg {
		return commitMsg{commit: <-commits}
	}
}

// deliverCommit runs on the scheduler's timer goroutine.
func (m *operatorModel) deliverCommit(commit rejectundo.Commit) {
	select {
	case m.commits <- commit:
	default:
		logging.Warn(m.ctx, "console commit notification dropped", slog.String("grievance_id", commit.ID))
	}
}

func (m *operatorModel) loadGrievancesCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.List(m.ctx, grievanceuc.ListFilter{Area: m.area})
		return grievancesLoadedMsg{items: items, err: err}
	}
}

func (m *operatorModel) loadHistoryCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	id := selected.ID
	return func() tea.Msg {
		events, err := m.service.History(m.ctx, id)
		return historyLoadedMsg{id: id, events: events, err: err}
	}
}

func (m *operatorModel) resolveCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "no grievance selected"
		return nil
	}
	if domain.IsTerminal(selected.Status) {
		m.status = fmt.Sprintf("%s is already %s", selected.ID, selected.Status)
		return nil
	}
	if id, _, pending := m.scheduler.Pending(); pending && id == selected.ID {
		m.status = "undo the pending rejection first"
		return nil
	}
	id := selected.ID
	m.status = "resolving " + id
	return func() tea.Msg {
		record, err := m.service.Resolve(m.ctx, grievanceuc.ResolveInput{ID: id, Actor: m.operator})
		return actionDoneMsg{action: "resolve", id: id, result: string(record.Status), err: err}
	}
}

func (m *operatorModel) initiateReject() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "no grievance selected"
		return nil
	}
	if domain.IsTerminal(selected.Status) {
		m.status = fmt.Sprintf("%s is already %s", selected.ID, selected.Status)
		return nil
	}
	replaced, err := m.scheduler.Initiate(selected.ID)
	if err != nil {
		m.status = "reject failed: " + err.Error()
		return nil
	}
	if replaced != "" && replaced != selected.ID {
		m.appendAuditLog("undo", replaced, "replaced", nil)
	}
	m.status = fmt.Sprintf("rejecting %s, press u within %s to undo", selected.ID, m.scheduler.Window())
	if m.countdownActive {
		return nil
	}
	m.countdownActive = true
	return m.countdownCmd()
}

func (m *operatorModel) applyView() {
	m.items = filterByView(m.all, m.view)
	if m.selectedIndex >= len(m.items) {
		m.selectedIndex = len(m.items) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

func (m *operatorModel) selected() (domain.Grievance, bool) {
	if len(m.items) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return domain.Grievance{}, false
	}
	return m.items[m.selectedIndex], true
}

func (m *operatorModel) appendAuditLog(action string, id string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s actor=%s grievance=%s action=%s result=%s", timestamp, m.operator, id, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "operator console action",
		slog.String("actor", m.operator),
		slog.String("grievance_id", id),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

// filterByView splits the list the way the dashboard tabs do: Rejected on one
// side, everything else (Resolved included) on the other.
func filterByView(items []domain.Grievance, view View) []domain.Grievance {
	out := make([]domain.Grievance, 0, len(items))
	for _, item := range items {
		rejected := item.Status == domain.StatusRejected
		if rejected == (view == ViewRejected) {
			out = append(out, item)
		}
	}
	return out
}

type statusCounts struct {
	pending  int
	high     int
	resolved int
}

func countStats(items []domain.Grievance) statusCounts {
	var out statusCounts
	for _, item := range items {
		switch item.Status {
		case domain.StatusPending:
			out.pending++
		case domain.StatusResolved:
			out.resolved++
		}
		if item.Priority == domain.PriorityHigh {
			out.high++
		}
	}
	return out
}

func formatRow(item domain.Grievance) string {
	return fmt.Sprintf("%s [%s] %s/%s %s @ %s",
		shortID(item.ID),
		item.Status,
		firstNonEmpty(item.Category, "-"),
		firstNonEmpty(string(item.Priority), "-"),
		item.CitizenName,
		item.Area,
	)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// formatRemaining rounds up so the countdown never shows 0s while still pending.
func formatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "0s"
	}
	seconds := (remaining + time.Second - 1) / time.Second
	return fmt.Sprintf("%ds", int(seconds))
}

func tailEvents(events []domain.Event, limit int) []domain.Event {
	if len(events) <= limit {
		return events
	}
	return events[len(events)-limit:]
}

func firstLine(value string) string {
	value = strings.TrimSpace(value)
	if index := strings.IndexByte(value, '\n'); index >= 0 {
		return strings.TrimSpace(value[:index]) + " ..."
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
