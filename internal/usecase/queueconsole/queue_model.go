package queueconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

const (
	maxAuditLines      = 8
	maxListedArticles  = 200
	maxShownDetailBody = 160
)

// QueueService is the part of the lifecycle service the console drives.
type QueueService interface {
	List(ctx context.Context, filter ports.ArticleFilter) ([]ports.Article, error)
	Stats(ctx context.Context) (lifecycle.Stats, error)
	QueueStats() lifecycle.QueueStats
	Detail(ctx context.Context, articleID uint64) (lifecycle.ArticleDetail, error)
	Approve(ctx context.Context, articleID uint64, feedback string) (ports.Article, error)
	Revise(ctx context.Context, articleID uint64, feedback string) (ports.Article, error)
	Reject(ctx context.Context, articleID uint64, feedback string) (ports.Article, error)
	Cancel(ctx context.Context, articleID uint64) (ports.Article, error)
	Retry(ctx context.Context, articleID uint64) (ports.Article, error)
	Pause(ctx context.Context, articleID uint64) (ports.Article, error)
	Resume(ctx context.Context, articleID uint64) (ports.Article, error)
}

var _ QueueService = (*lifecycle.Service)(nil)

type QueueOptions struct {
	StatusFilter    string
	Actor           string
	RefreshInterval time.Duration
}

type queueModel struct {
	ctx             context.Context
	service         QueueService
	statusFilter    article.Status
	actor           string
	refreshInterval time.Duration

	articles      []ports.Article
	selectedIndex int
	stats         lifecycle.Stats
	queue         lifecycle.QueueStats
	detail        lifecycle.ArticleDetail
	hasDetail     bool
	status        string
	auditLogs     []string
}

type articlesLoadedMsg struct {
	items []ports.Article
	stats lifecycle.Stats
	queue lifecycle.QueueStats
	err   error
}

type detailLoadedMsg struct {
	articleID uint64
	detail    lifecycle.ArticleDetail
	err       error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action    string
	articleID uint64
	result    string
	err       error
}

func NewQueueModel(ctx context.Context, service QueueService, options QueueOptions) (tea.Model, error) {
	var filter article.Status
	if raw := strings.TrimSpace(options.StatusFilter); raw != "" && raw != "all" {
		status, err := article.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		filter = status
	}

	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	return &queueModel{
		ctx:             ctx,
		service:         service,
		statusFilter:    filter,
		actor:           firstNonEmpty(options.Actor, "console"),
		refreshInterval: interval,
		status:          "loading",
	}, nil
}

func (m *queueModel) Init() tea.Cmd {
	return tea.Batch(m.loadArticlesCmd(), m.tickCmd())
}

func (m *queueModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadArticlesCmd(), m.tickCmd())
	case articlesLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.articles = msg.items
		m.stats = msg.stats
		m.queue = msg.queue
		if len(m.articles) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "queue is empty"
			return m, nil
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		if m.selectedIndex >= len(m.articles) {
			m.selectedIndex = len(m.articles) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d articles", len(m.articles))
		return m, m.loadSelectedDetailCmd()
	case detailLoadedMsg:
		if !m.isCurrentSelection(msg.articleID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.articleID, msg.result, msg.err)
		return m, m.loadArticlesCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadArticlesCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.articles)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "a":
			return m, m.actionCmd("approve")
		case "v":
			return m, m.actionCmd("revise")
		case "x":
			return m, m.actionCmd("reject")
		case "c":
			return m, m.actionCmd("cancel")
		case "r":
			return m, m.actionCmd("retry")
		case "p":
			return m, m.actionCmd("pause")
		}
	}
	return m, nil
}

func (m *queueModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Newsroom Queue"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"filter=%s actor=%s refresh=%s workers: queued=%d running=%d",
		firstNonEmpty(string(m.statusFilter), "all"),
		m.actor,
		m.refreshInterval,
		m.queue.Queued,
		m.queue.Running,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Stats"))
	builder.WriteString("\n")
	builder.WriteString(formatStats(m.stats))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Articles"))
	builder.WriteString("\n")
	if len(m.articles) == 0 {
		builder.WriteString(dimStyle.Render("- no articles"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.articles {
			line := fmt.Sprintf("#%d [%s] %s (%s)", item.ArticleID, item.Status, firstNonEmpty(item.Title, "untitled"), firstNonEmpty(item.Category, "-"))
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		item := m.detail.Article
		builder.WriteString(fmt.Sprintf("Article: #%d %s\n", item.ArticleID, item.Title))
		builder.WriteString(fmt.Sprintf("Status: %s round=%d review=%d retries=%d\n", item.Status, item.GenerationRound, item.ReviewRound, item.RetryCount))
		if item.LastError != "" {
			builder.WriteString(fmt.Sprintf("Error: %s (%s)\n", item.LastError, firstNonEmpty(item.FailureCause, "-")))
		}
		builder.WriteString(fmt.Sprintf("Lead: %s\n", truncate(firstNonEmpty(item.Lead, "-"), maxShownDetailBody)))
		builder.WriteString(fmt.Sprintf("Image: %s\n", article.ResolveImageStatus(item.Image.Status, item.Image.Prompt, item.Image.URL)))

		translations := make([]string, 0, len(m.detail.Translations))
		for _, translation := range m.detail.Translations {
			translations = append(translations, translation.Language+"="+string(translation.Status))
		}
		builder.WriteString(fmt.Sprintf("Translations: %s\n", firstNonEmpty(strings.Join(translations, ","), "none")))
		if evaluation := m.detail.Evaluation; evaluation != nil {
			builder.WriteString(fmt.Sprintf("Supervisor: score=%d recommendation=%s\n", evaluation.Score, evaluation.Recommendation))
		} else {
			builder.WriteString("Supervisor: none\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  a approve  v revise  x reject  c cancel  r retry  p pause/resume  q quit"))
	return builder.String()
}

func (m *queueModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *queueModel) loadArticlesCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.List(m.ctx, ports.ArticleFilter{Status: m.statusFilter, Limit: maxListedArticles})
		if err != nil {
			return articlesLoadedMsg{err: err}
		}
		stats, err := m.service.Stats(m.ctx)
		if err != nil {
			return articlesLoadedMsg{err: err}
		}
		return articlesLoadedMsg{items: items, stats: stats, queue: m.service.QueueStats()}
	}
}

func (m *queueModel) loadSelectedDetailCmd() tea.Cmd {
	selected, ok := m.selectedArticle()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.service.Detail(m.ctx, selected.ArticleID)
		return detailLoadedMsg{articleID: selected.ArticleID, detail: detail, err: err}
	}
}

// actionCmd runs a lifecycle command on the selected article. Pause toggles to resume on paused articles.
func (m *queueModel) actionCmd(action string) tea.Cmd {
	selected, ok := m.selectedArticle()
	if !ok {
		m.status = "no article selected"
		return nil
	}
	if action == "pause" && selected.Status == article.StatusPaused {
		action = "resume"
	}

	m.status = action + " running..."
	feedback := "console " + action + " by " + m.actor
	return func() tea.Msg {
		var (
			updated ports.Article
			err     error
		)
		switch action {
		case "approve":
			updated, err = m.service.Approve(m.ctx, selected.ArticleID, "")
		case "revise":
			updated, err = m.service.Revise(m.ctx, selected.ArticleID, feedback)
		case "reject":
			updated, err = m.service.Reject(m.ctx, selected.ArticleID, feedback)
		case "cancel":
			updated, err = m.service.Cancel(m.ctx, selected.ArticleID)
		case "retry":
			updated, err = m.service.Retry(m.ctx, selected.ArticleID)
		case "pause":
			updated, err = m.service.Pause(m.ctx, selected.ArticleID)
		case "resume":
			updated, err = m.service.Resume(m.ctx, selected.ArticleID)
		default:
			err = errors.New("unknown action " + action)
		}
		if err != nil {
			return actionDoneMsg{action: action, articleID: selected.ArticleID, err: err}
		}
		return actionDoneMsg{action: action, articleID: selected.ArticleID, result: string(updated.Status)}
	}
}

func (m *queueModel) selectedArticle() (ports.Article, bool) {
	if len(m.articles) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.articles) {
		return ports.Article{}, false
	}
	return m.articles[m.selectedIndex], true
}

func (m *queueModel) isCurrentSelection(articleID uint64) bool {
	selected, ok := m.selectedArticle()
	return ok && selected.ArticleID == articleID
}

func (m *queueModel) appendAuditLog(action string, articleID uint64, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s actor=%s article=%d action=%s result=%s", timestamp, m.actor, articleID, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "queue console action",
		slog.String("actor", m.actor),
		slog.Uint64("article_id", articleID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func formatStats(stats lifecycle.Stats) string {
	parts := make([]string, 0, len(article.Statuses)+1)
	parts = append(parts, fmt.Sprintf("total=%d", stats.Total))
	for _, status := range article.Statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, stats.ByStatus[status]))
	}
	return strings.Join(parts, " ")
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
