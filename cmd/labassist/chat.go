package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/labassist/pkg/conversation"
	"github.com/nstogner/labassist/pkg/domain"
)

type fragmentMsg string
type citationMsg domain.Citation
type stateMsg conversation.State
type answerMsg struct {
	answer *domain.Answer
	err    error
}

// turn is one question and whatever has been displayed for it.
type turn struct {
	question string
	// shown is the answer text with citation lines interleaved in arrival
	// order.
	shown    strings.Builder
	rendered string
	err      error
	done     bool
}

type chatModel struct {
	ctx       context.Context
	engine    asker
	assistant domain.Identity

	updates <-chan tea.Msg
	cancel  context.CancelFunc
	state   conversation.State
	busy    bool

	turns  []*turn
	width  int
	height int

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
}

func newChatModel(ctx context.Context, engine asker, assistant domain.Identity) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent(dimStyle.Render("Type a question and press Enter. Esc or Ctrl-C quits."))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = senderStyle

	return chatModel{
		ctx:       ctx,
		engine:    engine,
		assistant: assistant,
		viewport:  vp,
		textarea:  ta,
		spinner:   sp,
		renderer:  newRenderer(80),
	}
}

// newRenderer uses a fixed style so glamour does not query the terminal,
// which would leak escape sequences into the input.
func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		slog.Warn("Markdown renderer unavailable", "error", err)
		return nil
	}
	return r
}

func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var taCmd, vpCmd tea.Cmd

	if _, ok := msg.(tea.KeyMsg); !ok || !m.busy {
		m.textarea, taCmd = m.textarea.Update(msg)
		cmds = append(cmds, taCmd)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 3
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer = newRenderer(msg.Width - 4)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				break
			}
			q := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if lq := strings.ToLower(q); lq == "quit" || lq == "exit" {
				return m, tea.Quit
			}
			if q != "" {
				var cmd tea.Cmd
				m, cmd = m.send(q)
				cmds = append(cmds, cmd, m.spinner.Tick)
			}
		}

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case fragmentMsg:
		m.current().shown.WriteString(string(msg))
		m.refresh()
		cmds = append(cmds, waitForUpdate(m.updates))

	case citationMsg:
		m.current().shown.WriteString("\n" + citationStyle.Render("📖 Citation: "+msg.Text) + "\n")
		m.refresh()
		cmds = append(cmds, waitForUpdate(m.updates))

	case stateMsg:
		m.state = conversation.State(msg)
		cmds = append(cmds, waitForUpdate(m.updates))

	case answerMsg:
		t := m.current()
		t.done = true
		t.err = msg.err
		if msg.err == nil && msg.answer != nil {
			t.rendered = m.render(msg.answer)
		}
		m.busy = false
		m.updates = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.refresh()
	}

	return m, tea.Batch(cmds...)
}

func (m chatModel) current() *turn {
	return m.turns[len(m.turns)-1]
}

// send starts one exchange in the background. Observer callbacks are
// delivered to Update as messages in the order the engine emits them.
func (m chatModel) send(question string) (chatModel, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	ch := make(chan tea.Msg, 64)
	m.updates = ch
	m.cancel = cancel
	m.busy = true
	m.state = conversation.StateAwaitingRun
	m.turns = append(m.turns, &turn{question: question})
	m.refresh()

	deliver := func(msg tea.Msg) {
		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	}
	obs := conversation.ObserverFuncs{
		Text:     func(s string) { deliver(fragmentMsg(s)) },
		Citation: func(c domain.Citation) { deliver(citationMsg(c)) },
		State:    func(s conversation.State) { deliver(stateMsg(s)) },
	}
	engine, assistant := m.engine, m.assistant
	go func() {
		defer close(ch)
		answer, err := engine.Ask(ctx, assistant, question, obs)
		if err != nil {
			slog.Error("Exchange failed", "error", err)
		}
		deliver(answerMsg{answer: answer, err: err})
	}()
	return m, waitForUpdate(ch)
}

func waitForUpdate(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// render formats a completed answer as markdown followed by its citations.
func (m chatModel) render(a *domain.Answer) string {
	text := a.Text()
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			text = out
		}
	}
	if len(a.Citations) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	for _, c := range a.Citations {
		sb.WriteString(citationStyle.Render("📖 Citation: "+c.Text) + "\n")
	}
	return sb.String()
}

func (m *chatModel) refresh() {
	var sb strings.Builder
	for _, t := range m.turns {
		sb.WriteString(userStyle.Render("You: "))
		sb.WriteString(t.question)
		sb.WriteString("\n\n")
		sb.WriteString(senderStyle.Render("Assistant: "))
		sb.WriteString("\n")
		switch {
		case t.rendered != "":
			sb.WriteString(t.rendered)
		default:
			sb.WriteString(t.shown.String())
			sb.WriteString("\n")
		}
		if t.err != nil {
			sb.WriteString(errorStyle.Render("❌ " + t.err.Error()))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	header := titleStyle.Render("📚 Study Q&A Assistant") + " " + dimStyle.Render(m.assistant.RemoteID)
	status := dimStyle.Render("Enter to send, Esc to quit")
	if m.busy {
		status = m.spinner.View() + " " + dimStyle.Render(strings.ToLower(m.state.String()))
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), status, m.textarea.View())
}

func runChat(ctx context.Context, engine asker, assistant domain.Identity) error {
	p := tea.NewProgram(newChatModel(ctx, engine, assistant), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	fmt.Println("🎯 Session ended")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
