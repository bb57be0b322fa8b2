package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gridkit/compute/buffer"
	"github.com/gridkit/compute/runtime"
	"github.com/gridkit/compute/shape"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	entryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

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

type entryKind int

const (
	entryRoot entryKind = iota
	entryForEach
	entryInvoke
)

type entryInfo struct {
	name         string
	kind         entryKind
	slot         int
	takesPayload bool
}

type modelState int

const (
	stateSelectEntry modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	script   *runtime.Script
	filename string
	cacheDir string
	result   string
	entries  []entryInfo
	inputs   []textinput.Model
	spinner  spinner.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(filename, cacheDir string) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return &interactiveModel{
		filename: filename,
		cacheDir: cacheDir,
		spinner:  sp,
		state:    stateSelectEntry,
	}
}

type loadedMsg struct {
	err     error
	rt      *runtime.Runtime
	script  *runtime.Script
	entries []entryInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.loadScript, m.spinner.Tick)
}

func (m *interactiveModel) loadScript() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := runtime.New(ctx, runtime.Config{CacheDir: m.cacheDir})
	if err != nil {
		return loadedMsg{err: err}
	}

	script, err := rt.CompileScript(ctx, scriptName(m.filename), "", data)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	var entries []entryInfo
	if script.HasRoot() {
		entries = append(entries, entryInfo{name: "root", kind: entryRoot})
	}
	if script.HasForEach() {
		entries = append(entries, entryInfo{name: "forEach", kind: entryForEach})
	}
	for i := 0; i < script.FunctionCount(); i++ {
		entries = append(entries, entryInfo{
			name:         script.FunctionName(i),
			kind:         entryInvoke,
			slot:         i,
			takesPayload: script.TakesPayload(i),
		})
	}

	return loadedMsg{rt: rt, script: script, entries: entries}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.script != nil {
				m.script.Close(ctx)
			}
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectEntry && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectEntry && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectEntry:
				if len(m.entries) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callEntry
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callEntry

			case stateShowResult:
				m.state = stateSelectEntry
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectEntry
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectEntry
				m.result = ""
				m.err = nil
			}
		}

	case spinner.TickMsg:
		// The spinner only runs while the script loads.
		if m.script != nil || m.err != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.entries = msg.entries
		m.rt = msg.rt
		m.script = msg.script

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
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

func (m *interactiveModel) prepareInputs() {
	e := m.entries[m.selected]

	var fields []struct{ prompt, placeholder string }
	switch e.kind {
	case entryForEach:
		fields = []struct{ prompt, placeholder string }{
			{"elements", "u32 cells to allocate, empty for none"},
			{"range", "x0:x1[,y0:y1[,z0:z1]]"},
			{"user data", "raw bytes, optional"},
		}
	case entryInvoke:
		if e.takesPayload {
			fields = []struct{ prompt, placeholder string }{
				{"payload", "raw bytes"},
			}
		}
	}

	m.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.Prompt = f.prompt + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callEntry() tea.Msg {
	ctx := context.Background()
	e := m.entries[m.selected]

	switch e.kind {
	case entryRoot:
		ret, err := m.script.Run(ctx)
		if err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: fmt.Sprintf("root returned %d", ret)}

	case entryForEach:
		var elems uint64
		if v := m.inputs[0].Value(); v != "" {
			var err error
			elems, err = strconv.ParseUint(v, 10, 32)
			if err != nil {
				return callResultMsg{err: fmt.Errorf("elements: %w", err)}
			}
		}
		opts, err := parseRange(m.inputs[1].Value())
		if err != nil {
			return callResultMsg{err: err}
		}
		userData := []byte(m.inputs[2].Value())

		var buf *buffer.Buffer
		if elems > 0 {
			sh, err := m.rt.Registry().Build(shape.Request{Element: u32Cell, DimX: uint32(elems)})
			if err != nil {
				return callResultMsg{err: err}
			}
			buf = buffer.New(sh)
			sh.Release()
			defer buf.Release()
		}

		if err := m.script.RunForEach(ctx, buf, buf, userData, opts); err != nil {
			return callResultMsg{err: err}
		}
		if buf != nil {
			view := buf.Uint32View()
			n := len(view)
			if n > 8 {
				n = 8
			}
			return callResultMsg{result: fmt.Sprintf("out[0:%d] = %v", n, view[:n])}
		}
		return callResultMsg{result: "forEach completed"}

	default:
		var payload []byte
		if e.takesPayload && len(m.inputs) > 0 {
			payload = []byte(m.inputs[0].Value())
		}
		if err := m.script.InvokeFunction(ctx, e.slot, payload); err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: e.name + " completed"}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.script == nil {
		return m.spinner.View() + " Loading script..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Script Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectEntry:
		if len(m.entries) == 0 {
			b.WriteString("Script exports no entries.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select an entry to run:\n\n")
		for i, e := range m.entries {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatEntry(e)))
			} else {
				b.WriteString(cursor + m.formatEntry(e))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInputArgs:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Running %s\n\n", entryStyle.Render(e.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateShowResult:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", entryStyle.Render(e.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatEntry(e entryInfo) string {
	switch e.kind {
	case entryRoot:
		return entryStyle.Render("root") + "() -> " + typeStyle.Render("i32")
	case entryForEach:
		return entryStyle.Render("forEach") + "(" + typeStyle.Render("range") + ")"
	default:
		sig := "()"
		if e.takesPayload {
			sig = "(" + typeStyle.Render("payload") + ")"
		}
		return entryStyle.Render(e.name) + sig
	}
}

func runInteractive(filename, cacheDir string) error {
	p := tea.NewProgram(newInteractiveModel(filename, cacheDir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
