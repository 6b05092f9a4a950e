package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/inviteflow/concierge/conversation"
	"github.com/inviteflow/concierge/quota"
)

// Styles holds all the styles for the application
type Styles struct {
	Theme Theme

	// Layout
	Header    lipgloss.Style
	Footer    lipgloss.Style
	ChatPanel lipgloss.Style
	InputArea lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Notice         lipgloss.Style

	// Activity and tools
	Activity    lipgloss.Style
	ToolName    lipgloss.Style
	ToolRunning lipgloss.Style
	ToolSuccess lipgloss.Style
	ToolError   lipgloss.Style
	ToolPending lipgloss.Style

	// Confirmation panel and quick replies
	ConfirmPanel lipgloss.Style
	QuickReply   lipgloss.Style

	// Usage meter
	UsageNormal   lipgloss.Style
	UsageWarning  lipgloss.Style
	UsageCritical lipgloss.Style

	// UI Elements
	Title lipgloss.Style
	Label lipgloss.Style
	Help  lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Header = lipgloss.NewStyle().
		Background(theme.Surface).
		Foreground(theme.Text).
		Padding(0, 2).
		Bold(true)

	s.Footer = lipgloss.NewStyle().
		Background(theme.Surface).
		Foreground(theme.TextDim).
		Padding(0, 2)

	s.ChatPanel = lipgloss.NewStyle().
		Padding(1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.InputArea = lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary)

	s.UserLabel = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.AssistantLabel = lipgloss.NewStyle().
		Foreground(theme.Accent).
		Bold(true)

	s.MessageBody = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.Notice = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Activity = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	s.ToolName = lipgloss.NewStyle().
		Foreground(theme.Accent).
		Bold(true)

	s.ToolRunning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.ToolSuccess = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.ToolError = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.ToolPending = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.ConfirmPanel = lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Warning)

	s.QuickReply = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.UsageNormal = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.UsageWarning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.UsageCritical = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.Label = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	return s
}

// RenderRole returns a styled speaker label
func (s *Styles) RenderRole(role string) string {
	switch role {
	case "user":
		return s.UserLabel.Render("You:")
	case "assistant":
		return s.AssistantLabel.Render("Assistant:")
	default:
		return s.Label.Render(role + ":")
	}
}

// RenderToolStatus returns a styled tool status marker
func (s *Styles) RenderToolStatus(status conversation.ToolStatus) string {
	switch status {
	case conversation.ToolStatusExecuting:
		return s.ToolRunning.Render("● running")
	case conversation.ToolStatusSuccess:
		return s.ToolSuccess.Render("✓ done")
	case conversation.ToolStatusError:
		return s.ToolError.Render("✗ failed")
	default:
		return s.ToolPending.Render("◌ waiting")
	}
}

// RenderUsage returns the usage meter colored by how close the user is to
// the daily limit.
func (s *Styles) RenderUsage(text string, status quota.Status) string {
	switch status {
	case quota.StatusWarning:
		return s.UsageWarning.Render(text)
	case quota.StatusCritical, quota.StatusExceeded:
		return s.UsageCritical.Render(text)
	default:
		return s.UsageNormal.Render(text)
	}
}
