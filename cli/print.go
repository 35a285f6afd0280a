package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, format+"\n", a...)
}

// successf prints a message prefixed with a green "OK".
func successf(w io.Writer, format string, a ...interface{}) {
	if _, err := color.New(color.Bold, color.FgGreen).Fprint(w, "OK: "); err != nil {
		return
	}
	printf(w, format, a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	if _, err := color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: "); err != nil {
		return
	}
	printf(w, format, a...)
}
