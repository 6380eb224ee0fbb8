package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/interp"
	"github.com/wippyai/offload/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectBackend modelState = iota
	stateConfigure
	stateShowResult
)

type interactiveModel struct {
	err      error
	backends []string
	selected int

	rt  *runtime.Runtime
	ctx *runtime.Context

	inputs   []textinput.Model
	focusIdx int

	input  []byte
	output []byte
	state  modelState
}

type openedMsg struct {
	err error
	rt  *runtime.Runtime
	ctx *runtime.Context
}

type launchResultMsg struct {
	err    error
	input  []byte
	output []byte
}

func newInteractiveModel() *interactiveModel {
	return &interactiveModel{
		backends: dispatch.Backends(),
		state:    stateSelectBackend,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) openBackend() tea.Msg {
	rt, err := runtime.Open(m.backends[m.selected])
	if err != nil {
		return openedMsg{err: err}
	}
	ctx, err := rt.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		rt.Close()
		return openedMsg{err: err}
	}
	return openedMsg{rt: rt, ctx: ctx}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateConfigure && msg.String() == "q" {
				break // "q" is a valid input character here
			}
			m.teardown()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectBackend && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectBackend && m.selected < len(m.backends)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectBackend:
				return m, m.openBackend

			case stateConfigure:
				return m, m.launch

			case stateShowResult:
				m.teardown()
				m.state = stateSelectBackend
				m.output = nil
				m.err = nil
			}

		case "tab":
			if m.state == stateConfigure && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateConfigure:
				m.teardown()
				m.state = stateSelectBackend
				m.inputs = nil
			case stateShowResult:
				m.teardown()
				m.state = stateSelectBackend
				m.output = nil
				m.err = nil
			}
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.rt = msg.rt
		m.ctx = msg.ctx
		m.prepareInputs()
		m.state = stateConfigure

	case launchResultMsg:
		m.err = msg.err
		m.input = msg.input
		m.output = msg.output
		m.state = stateShowResult
	}

	if m.state == stateConfigure {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) teardown() {
	if m.ctx != nil {
		m.ctx.Destroy()
		m.ctx = nil
	}
	if m.rt != nil {
		m.rt.Close()
		m.rt = nil
	}
}

func (m *interactiveModel) prepareInputs() {
	program := textinput.New()
	program.Prompt = "program: "
	program.Width = 40
	if m.backends[m.selected] == interp.Name {
		program.Placeholder = "path/to/kernel.wasm"
	} else {
		program.Placeholder = "copy"
		program.SetValue("copy")
	}
	program.Focus()

	size := textinput.New()
	size.Prompt = "size: "
	size.Placeholder = "64"
	size.Width = 40

	m.inputs = []textinput.Model{program, size}
	m.focusIdx = 0
}

func (m *interactiveModel) launch() tea.Msg {
	backend := m.backends[m.selected]
	program := strings.TrimSpace(m.inputs[0].Value())

	size := 64
	if v := strings.TrimSpace(m.inputs[1].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return launchResultMsg{err: fmt.Errorf("bad size %q", v)}
		}
		size = n
	}

	input, err := loadInput("", size)
	if err != nil {
		return launchResultMsg{err: err}
	}

	var output []byte
	if backend == interp.Name {
		output, err = launch(m.ctx, backend, program, "", 0, input)
	} else {
		output, err = launch(m.ctx, backend, "", program, 0, input)
	}
	return launchResultMsg{err: err, input: input, output: output}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("offload"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectBackend:
		b.WriteString("Select a backend:\n\n")
		for i, name := range m.backends {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + name))
			} else {
				b.WriteString(cursor + nameStyle.Render(name))
			}
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateConfigure:
		b.WriteString(fmt.Sprintf("Backend %s\n\n", nameStyle.Render(m.backends[m.selected])))
		for i := range m.inputs {
			b.WriteString(m.inputs[i].View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter launch • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Backend %s\n\n", nameStyle.Render(m.backends[m.selected])))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString("Input:  " + hexPreview(m.input) + "\n")
			b.WriteString("Output: " + resultStyle.Render(hexPreview(m.output)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter another backend • ctrl+c quit"))
	}

	return b.String()
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
