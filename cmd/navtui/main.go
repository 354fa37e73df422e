// Command navtui is a terminal consumer of a Navigator core: it
// subscribes to the plugin.Core facade the same way any output
// plugin would and renders live state, demonstrating that the core
// is UI-framework-agnostic.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/navigator-sdk/navigator/cognitive"
	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/logger"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	eventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

func main() {
	logger.Initialize("error", false) // keep stdout clean for the TUI

	c := core.New()
	c.RegisterPlugin(cognitive.New(cognitive.DefaultConfig()), plugin.WithPriority(150))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "init failed:", err)
		os.Exit(1)
	}
	if err := c.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start failed:", err)
		os.Exit(1)
	}
	defer c.Stop(context.Background())

	m := newModel(c)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}

type eventMsg eventbus.Event

type model struct {
	core   *core.Core
	events chan eventbus.Event
	log    []string
	width  int
	height int
}

func newModel(c *core.Core) *model {
	m := &model{core: c, events: make(chan eventbus.Event, 64)}
	c.EventBus().On(eventbus.Wildcard, func(ev eventbus.Event) {
		select {
		case m.events <- ev:
		default:
		}
	})
	return m
}

func (m *model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events chan eventbus.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left":
			m.core.Store().Dispatch(store.Navigate(store.DirLeft, store.SourceKeyboard))
		case "right":
			m.core.Store().Dispatch(store.Navigate(store.DirRight, store.SourceKeyboard))
		}
		return m, nil

	case eventMsg:
		line := fmt.Sprintf("[%s] %s", msg.Timestamp.Format("15:04:05.000"), msg.Name)
		m.log = append(m.log, line)
		if len(m.log) > 200 {
			m.log = m.log[len(m.log)-200:]
		}
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m *model) View() string {
	state := m.core.Store().GetState()

	var b strings.Builder
	b.WriteString(titleStyle.Render("navigator — live state") + "\n\n")
	fmt.Fprintf(&b, "card: %d   layer: %d   cognitive: %s\n\n",
		state.Navigation.CurrentCardIndex, state.Navigation.CurrentLayer, state.User.CognitiveState)

	b.WriteString(dimStyle.Render("recent events") + "\n")
	start := 0
	if len(m.log) > 15 {
		start = len(m.log) - 15
	}
	for _, line := range m.log[start:] {
		b.WriteString(eventStyle.Render(line) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("←/→ navigate · q to quit"))
	return b.String()
}
