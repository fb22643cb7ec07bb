package ui

import (
	"fmt"
	"io"
	"os"
)

// Out and Err receive command output. Tests swap them for buffers.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

func OK(msg string) {
	t := Current()
	fmt.Fprintln(Out, t.Success.Render(t.SymOK+" "+msg))
}

func Fail(msg string) {
	t := Current()
	fmt.Fprintln(Err, t.Error.Render(t.SymFail+" "+msg))
}

// Hint prints a muted follow-up line under an error.
func Hint(msg string) {
	fmt.Fprintln(Err, Current().Muted.Render("Hint: "+msg))
}

// Println writes a plain line to Out.
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}
