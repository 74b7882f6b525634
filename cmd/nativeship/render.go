// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/nativeship/nativeship/internal/issue"
)

// renderGuide prints the Markdown guide attached to an actionable error.
// In verbose mode the full error chain is printed above it.
func (a *App) renderGuide(err error, verbose bool) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if verbose {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(true))
	}
	if ae.Guide == 0 {
		return
	}
	guide := issue.Get(ae.Guide)
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render(guideStyle(a.stderr))
	if renderErr != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+"failed to render issue guide: "+renderErr.Error())
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// guideStyle picks the glamour style: colored on a terminal, plain otherwise.
func guideStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}
