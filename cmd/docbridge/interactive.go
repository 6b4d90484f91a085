package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/docbridge/bridge"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/syntax"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive [file]",
	Aliases: []string{"i"},
	Short:   "Call bridge functions on the world from a terminal UI",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runInteractive,
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
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

// interactiveFuncs are the boundary functions that make sense to call by
// hand against an open world.
var interactiveFuncs = []string{
	"compile_to_svg",
	"compile_to_raster",
	"compile_to_html",
	"query",
	"detached_eval",
	"format_source",
	"parse_syntax",
	"reset_world",
}

type interactiveModel struct {
	err      error
	session  *session
	world    int64
	result   string
	funcs    []bridge.Function
	inputs   []textinput.Model
	params   []bridge.Param
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(s *session) *interactiveModel {
	m := &interactiveModel{session: s, state: stateSelectFunc}
	for _, name := range interactiveFuncs {
		if f, ok := bridge.Lookup(name); ok {
			m.funcs = append(m.funcs, f)
		}
	}
	return m
}

type openedMsg struct {
	err   error
	world int64
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.openWorld
}

func (m *interactiveModel) openWorld() tea.Msg {
	h, err := m.session.openWorld()
	return openedMsg{world: h, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if m.world == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
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
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case openedMsg:
		m.world, m.err = msg.world, msg.err

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

// prepareInputs creates a text field for every parameter except the world
// handle, which is always the open world.
func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs, m.params = nil, nil
	for _, p := range f.Params {
		if p.Type == bridge.HandleType {
			continue
		}
		ti := textinput.New()
		ti.Placeholder = bridge.TypeString(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if len(m.inputs) == 0 {
			ti.Focus()
		}
		m.inputs = append(m.inputs, ti)
		m.params = append(m.params, p)
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), m.params[i].Type)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", m.params[i].Name, err)}
		}
		args[i] = v
	}
	result, err := m.session.call(m.world, f.Name, args)
	return callResultMsg{result: result, err: err}
}

// convertArg parses a field value as a parameter of type t. Buffers are
// passed as text.
func convertArg(value string, t wit.Type) (any, error) {
	switch t.(type) {
	case wit.U8, wit.U16, wit.U32:
		v, err := strconv.ParseUint(value, 10, 32)
		return uint32(v), err
	case wit.S8, wit.S16, wit.S32:
		if value == "" {
			return int32(0), nil
		}
		v, err := strconv.ParseInt(value, 10, 32)
		return int32(v), err
	case wit.U64:
		return strconv.ParseUint(value, 10, 64)
	case wit.S64:
		return strconv.ParseInt(value, 10, 64)
	case wit.F32:
		v, err := strconv.ParseFloat(value, 32)
		return float32(v), err
	case wit.F64:
		return strconv.ParseFloat(value, 64)
	case wit.Bool:
		return value == "true" || value == "1", nil
	}
	return value, nil
}

// call runs the boundary function name on world h and renders its outcome
// as text. Diagnostics are rendered without colour.
func (s *session) call(h int64, name string, args []any) (string, error) {
	b := s.bridge
	var out bytes.Buffer
	report := newReporter(&out, s.files, false)

	str := func(i int) string { return args[i].(string) }
	num := func(i int) int32 { return args[i].(int32) }

	switch name {
	case "reset_world":
		if err := b.ResetWorld(h); err != nil {
			return "", err
		}
		return "world reset", nil

	case "compile_to_svg":
		env, err := b.CompileSVG(h, num(0), num(1))
		if err != nil {
			return "", err
		}
		res, err := envelope.Unpack[bridge.SVGOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return "", err
		}
		report.Report(res.Warnings)
		pages, errs, ok := res.Output.Unpack()
		if !ok {
			return diagnosticsError(report, &out, errs)
		}
		for i, p := range pages {
			fmt.Fprintf(&out, "page %d: %d bytes of svg\n", i+1, len(p))
		}
		return out.String(), nil

	case "compile_to_raster":
		env, err := b.CompileRaster(h, num(0), num(1), args[2].(float32))
		if err != nil {
			return "", err
		}
		res, err := envelope.Unpack[bridge.RasterOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return "", err
		}
		report.Report(res.Warnings)
		pages, errs, ok := res.Output.Unpack()
		if !ok {
			return diagnosticsError(report, &out, errs)
		}
		for i, p := range pages {
			fmt.Fprintf(&out, "page %d: %d bytes of png\n", i+1, len(p))
		}
		return out.String(), nil

	case "compile_to_html":
		env, err := b.CompileHTML(h)
		if err != nil {
			return "", err
		}
		res, err := envelope.Unpack[bridge.HTMLOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return "", err
		}
		return textOutcome(report, &out, res.Output, res.Warnings)

	case "query":
		selector, err := s.wrap(str(0))
		if err != nil {
			return "", err
		}
		env, err := b.Query(h, selector, num(1))
		if err != nil {
			return "", err
		}
		res, err := envelope.Unpack[bridge.QueryOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return "", err
		}
		return textOutcome(report, &out, res.Output, res.Warnings)

	case "detached_eval":
		source, err := s.wrap(str(0))
		if err != nil {
			return "", err
		}
		env, err := b.DetachedEval(h, source)
		if err != nil {
			return "", err
		}
		res, err := envelope.Unpack[bridge.EvalOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return "", err
		}
		return textOutcome(report, &out, res, nil)

	case "format_source":
		source, err := s.wrap(str(0))
		if err != nil {
			return "", err
		}
		formatted, err := b.FormatSource(source, num(1), num(2))
		if err != nil {
			return "", err
		}
		return b.Arena().UnwrapString(formatted)

	case "parse_syntax":
		source, err := s.wrap(str(0))
		if err != nil {
			return "", err
		}
		tree, err := b.ParseSyntax(source, num(1))
		if err != nil {
			return "", err
		}
		defer b.ReleaseFlattenedTree(tree)
		flat, err := b.ReadFlattenedTree(tree)
		if err != nil {
			return "", err
		}
		outline, err := syntax.Rebuild(flat.Entries)
		if err != nil {
			return "", err
		}
		printOutline(&out, outline, flat, str(0), 0)
		return out.String(), nil
	}
	return "", fmt.Errorf("%s cannot be called interactively", name)
}

func textOutcome(report *reporter, out *bytes.Buffer, r envelope.Result[string, []diag.Diagnostic], warnings []diag.Diagnostic) (string, error) {
	report.Report(warnings)
	text, errs, ok := r.Unpack()
	if !ok {
		return diagnosticsError(report, out, errs)
	}
	out.WriteString(text)
	return out.String(), nil
}

func diagnosticsError(report *reporter, out *bytes.Buffer, errs []diag.Diagnostic) (string, error) {
	n := report.Report(errs)
	return "", fmt.Errorf("%d error(s)\n\n%s", n, strings.TrimRight(out.String(), "\n"))
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.world == 0 {
		return "Opening world..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("docbridge"))
	b.WriteString(" ")
	b.WriteString(m.session.root)
	b.WriteString("/")
	b.WriteString(m.session.main)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatFunc(f)))
			} else {
				b.WriteString("  " + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(bridge.TypeString(m.params[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
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

func (m *interactiveModel) formatFunc(f bridge.Function) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+typeStyle.Render(bridge.TypeString(p.Type)))
	}
	result := ""
	if f.Result != nil {
		result = " -> " + typeStyle.Render(bridge.TypeString(f.Result))
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, fileArg(args))
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
