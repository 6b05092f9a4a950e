// Package tui is the terminal chat front end. It renders the conversation
// state machine and the quota meter, and forwards user intent (send, cancel,
// confirm, decline) to the turn controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/inviteflow/concierge/conversation"
	"github.com/inviteflow/concierge/quota"
	"github.com/inviteflow/concierge/tui/styles"
)

// New creates the chat application around an existing controller
func New(controller *conversation.Controller, gate *quota.Gate, themeName string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask me to plan something..."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false) // Enter sends message

	chatView := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		controller: controller,
		gate:       gate,
		textarea:   ta,
		chatView:   chatView,
		spinner:    sp,
		theme:      styles.GetTheme(themeName),
		keys:       DefaultKeyMap(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.waitForActivity(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	state := m.controller.State()
	busy := state.IsLoading() || state.IsStreaming()
	pending := state.PendingConfirmation()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c", msg.String() == "ctrl+d":
			return m, tea.Quit

		case msg.String() == "ctrl+l":
			m.notice = ""
			if err := m.controller.ClearConversation(); err != nil {
				m.notice = fmt.Sprintf("Couldn't clear the conversation: %v", err)
			}
			m.updateChatView()
			return m, nil

		case msg.String() == "esc":
			if pending != nil {
				m.controller.CancelPending()
				m.updateChatView()
				return m, nil
			}
			if busy {
				m.controller.CancelTurn()
				return m, nil
			}
			return m, nil

		case pending != nil && !busy && (msg.String() == "y" || msg.String() == "Y"):
			m.notice = ""
			return m, m.confirmPending()

		case pending != nil && (msg.String() == "n" || msg.String() == "N"):
			m.controller.CancelPending()
			m.updateChatView()
			return m, nil

		case msg.String() == "enter" && !busy && pending == nil:
			input := strings.TrimSpace(m.textarea.Value())
			if input != "" {
				m.textarea.SetValue("")
				m.notice = ""
				cmds = append(cmds, m.sendMessage(input))
			}
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.updateChatView()
		if !m.initialized {
			m.initialized = true
		}
		return m, nil

	case turnFinishedMsg:
		if msg.err != nil {
			m.notice = noticeFor(msg.err)
		}
		m.updateChatView()
		return m, nil

	case confirmFinishedMsg:
		if msg.err != nil {
			m.notice = noticeFor(msg.err)
		}
		m.updateChatView()
		return m, nil

	case spinner.TickMsg:
		sp, cmd := m.spinner.Update(msg)
		m.spinner = sp
		return m, cmd

	case tickMsg:
		// State mutates on the controller's goroutine; re-render from a
		// fresh copy every tick while a turn is streaming.
		m.updateChatView()
		return m, m.waitForActivity()
	}

	// Typing stays enabled except mid-turn and at a confirmation boundary.
	if !busy && pending == nil {
		ta, cmd := m.textarea.Update(msg)
		m.textarea = ta
		cmds = append(cmds, cmd)
	}

	vp, cmd := m.chatView.Update(msg)
	m.chatView = vp
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the application
func (m Model) View() string {
	if !m.initialized {
		return "Initializing..."
	}

	s := styles.NewStyles(m.theme)

	var sections []string
	sections = append(sections, m.renderHeader(s))
	sections = append(sections, s.ChatPanel.
		Width(m.chatView.Width+2).
		Render(m.chatView.View()))

	if pending := m.controller.State().PendingConfirmation(); pending != nil {
		sections = append(sections, m.renderConfirmPanel(s, pending.Name))
	} else if m.controller.State().QuickRepliesOffered() {
		sections = append(sections, m.renderQuickReplies(s))
	}

	sections = append(sections, m.renderInputArea(s))
	sections = append(sections, m.renderFooter(s))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) updateLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	headerHeight := 1
	footerHeight := 1
	inputHeight := 5
	affordanceHeight := 3 // confirmation panel or quick replies

	m.chatView.Width = m.width - 4
	m.chatView.Height = m.height - headerHeight - footerHeight - inputHeight - affordanceHeight - 2
	m.textarea.SetWidth(m.width - 6)
}

func (m *Model) updateChatView() {
	s := styles.NewStyles(m.theme)
	state := m.controller.State()

	var content strings.Builder
	messages := state.Messages()
	for i, msg := range messages {
		content.WriteString(s.RenderRole(string(msg.Role)))
		content.WriteString("\n")

		body := msg.Content
		if body == "" && i == len(messages)-1 && state.IsLoading() {
			// The assistant slot exists but nothing streamed yet.
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			content.WriteString("  ")
			content.WriteString(s.MessageBody.Render(line))
			content.WriteString("\n")
		}

		content.WriteString(s.Label.Render("  " + msg.Timestamp.Format("15:04:05")))
		content.WriteString("\n\n")
	}

	for _, tool := range state.ExecutingTools() {
		content.WriteString("  ")
		content.WriteString(s.ToolName.Render(conversation.ActivityLabel(tool.Name)))
		content.WriteString(" ")
		content.WriteString(s.RenderToolStatus(tool.Status))
		content.WriteString("\n")
	}

	if activity := state.CurrentActivity(); activity != "" {
		content.WriteString("\n  ")
		content.WriteString(m.spinner.View())
		content.WriteString(s.Activity.Render(activity + "..."))
		content.WriteString("\n")
	}

	if m.notice != "" {
		content.WriteString("\n  ")
		content.WriteString(s.Notice.Render(m.notice))
		content.WriteString("\n")
	}

	m.chatView.SetContent(content.String())
	m.chatView.GotoBottom()
}

// sendMessage runs one turn off the update loop. The tick cycle re-renders
// streamed content while the command is in flight.
func (m *Model) sendMessage(input string) tea.Cmd {
	return func() tea.Msg {
		err := m.controller.Send(context.Background(), input)
		return turnFinishedMsg{err: err}
	}
}

func (m *Model) confirmPending() tea.Cmd {
	return func() tea.Msg {
		err := m.controller.Confirm(context.Background())
		return confirmFinishedMsg{err: err}
	}
}

func (m *Model) waitForActivity() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// noticeFor extracts the user-facing line from a turn failure
func noticeFor(err error) string {
	var blocked *conversation.BlockedError
	if errors.As(err, &blocked) {
		return blocked.Notice
	}
	var turnErr *conversation.TurnError
	if errors.As(err, &turnErr) {
		return turnErr.Notice
	}
	return err.Error()
}

func (m Model) renderHeader(s *styles.Styles) string {
	left := s.Title.Render("Concierge")

	snapshot := m.gate.Snapshot()
	var usage string
	if snapshot.Limit > 0 {
		usage = fmt.Sprintf("%d/%d prompts today", snapshot.Used, snapshot.Limit)
		if snapshot.IsAdmin {
			usage += " (admin)"
		}
	} else {
		usage = "usage unknown"
	}
	right := s.RenderUsage(usage, snapshot.Status())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 0 {
		gap = 0
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		strings.Repeat(" ", gap),
		right,
	)
	return s.Header.Width(m.width).Render(header)
}

func (m Model) renderConfirmPanel(s *styles.Styles, toolName string) string {
	line := fmt.Sprintf("%s • confirm? %s / %s",
		s.ToolName.Render(conversation.ActivityLabel(toolName)),
		s.ToolSuccess.Render("[y]es"),
		s.ToolError.Render("[n]o"),
	)
	return s.ConfirmPanel.Width(m.width - 2).Render(line)
}

func (m Model) renderQuickReplies(s *styles.Styles) string {
	replies := []string{"Yes, go ahead", "Make changes", "Cancel"}
	var rendered []string
	for _, reply := range replies {
		rendered = append(rendered, s.QuickReply.Render(reply))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderInputArea(s *styles.Styles) string {
	label := "Message:"
	state := m.controller.State()
	if state.IsLoading() || state.IsStreaming() {
		label = m.spinner.View() + " Responding... (esc to stop)"
	} else if state.PendingConfirmation() != nil {
		label = "Waiting for your confirmation"
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		s.Label.Render(label),
		m.textarea.View(),
	)
	return s.InputArea.Width(m.width - 2).Render(content)
}

func (m Model) renderFooter(s *styles.Styles) string {
	help := []string{
		"Enter: Send",
		"Esc: Stop",
		"Ctrl+L: Clear",
		"Ctrl+C: Quit",
	}
	return s.Footer.Width(m.width).Render(strings.Join(help, " • "))
}
