package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/session"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// SubmitFunc sends the form values to the server. Name is empty when signing in.
type SubmitFunc func(ctx context.Context, name, email, password string) error

type submittedMsg struct{ err error }

type loginForm struct {
	ctx      context.Context
	register bool
	submit   SubmitFunc

	inputs  []textinput.Model // [name,] email, password
	focus   int
	spinner spinner.Model
	busy    bool
	errMsg  string
	done    bool
	fatal   error
}

func newLoginForm(ctx context.Context, register bool, email string, submit SubmitFunc) loginForm {
	newInput := func(placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = 254
		ti.Width = 40
		return ti
	}

	var inputs []textinput.Model
	if register {
		inputs = append(inputs, newInput("Name"))
	}
	em := newInput("Email")
	em.SetValue(email)
	pw := newInput("Password")
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	inputs = append(inputs, em, pw)

	f := loginForm{
		ctx:      ctx,
		register: register,
		submit:   submit,
		inputs:   inputs,
		spinner:  spinner.New(),
	}
	// start on the first empty field
	for i := range f.inputs {
		if f.inputs[i].Value() == "" {
			f.focus = i
			break
		}
	}
	f.inputs[f.focus].Focus()
	return f
}

// RunLoginForm shows the sign-in (or sign-up) form and blocks until the
// server accepts the credentials or the user cancels. It reports whether a
// session was established.
func RunLoginForm(ctx context.Context, register bool, email string, submit SubmitFunc) (bool, error) {
	prog := tea.NewProgram(newLoginForm(ctx, register, email, submit), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return false, err
	}
	f, ok := final.(loginForm)
	if !ok {
		return false, nil
	}
	return f.done, f.fatal
}

func (f loginForm) Init() tea.Cmd { return textinput.Blink }

func (f loginForm) values() (name, email, password string) {
	i := 0
	if f.register {
		name = strings.TrimSpace(f.inputs[0].Value())
		i = 1
	}
	return name, strings.TrimSpace(f.inputs[i].Value()), f.inputs[i+1].Value()
}

// validate mirrors the checks the session manager applies so the user gets
// feedback without a round trip.
func (f loginForm) validate() string {
	name, email, password := f.values()
	switch {
	case f.register && name == "":
		return "name is required"
	case email == "" || password == "":
		return "email and password are required"
	case f.register && len([]rune(password)) < session.MinPasswordLen:
		return fmt.Sprintf("password must be at least %d characters", session.MinPasswordLen)
	}
	return ""
}

func (f *loginForm) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f loginForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !f.busy {
			return f, nil
		}
		var cmd tea.Cmd
		f.spinner, cmd = f.spinner.Update(msg)
		return f, cmd

	case submittedMsg:
		f.busy = false
		if msg.err == nil {
			f.done = true
			return f, tea.Quit
		}
		switch apperr.KindOf(msg.err) {
		case apperr.Validation, apperr.Auth, apperr.Network:
			f.errMsg = apperr.Message(msg.err)
			return f, nil
		}
		f.fatal = msg.err
		return f, tea.Quit

	case tea.KeyMsg:
		if f.busy {
			if msg.Type == tea.KeyCtrlC {
				return f, tea.Quit
			}
			return f, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return f, tea.Quit
		case tea.KeyTab, tea.KeyDown:
			cmd := f.move(1)
			return f, cmd
		case tea.KeyShiftTab, tea.KeyUp:
			cmd := f.move(-1)
			return f, cmd
		case tea.KeyEnter:
			if f.focus < len(f.inputs)-1 {
				cmd := f.move(1)
				return f, cmd
			}
			if m := f.validate(); m != "" {
				f.errMsg = m
				return f, nil
			}
			f.errMsg = ""
			f.busy = true
			name, email, password := f.values()
			submit, ctx := f.submit, f.ctx
			return f, tea.Batch(f.spinner.Tick, func() tea.Msg {
				return submittedMsg{err: submit(ctx, name, email, password)}
			})
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f loginForm) View() string {
	t := ui.Current()
	title := "Sign in to tada"
	if f.register {
		title = "Create a tada account"
	}
	lines := []string{t.Title.Render(title), ""}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, "")
	switch {
	case f.busy:
		lines = append(lines, f.spinner.View()+" "+t.Muted.Render("contacting server..."))
	case f.errMsg != "":
		lines = append(lines, t.Error.Render(f.errMsg))
	default:
		lines = append(lines, t.Muted.Render("tab: next field • enter: submit • esc: cancel"))
	}
	return ui.Panel(lines) + "\n"
}
