// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package launcher

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// outputDrainTimeout bounds how long terminal output is drained after the
// application exits.
const outputDrainTimeout = 2 * time.Second

// runPTY starts cmd on a new pseudo-terminal and waits for it. When stdin is a
// terminal it is put in raw mode and its size is mirrored onto the pty.
// started is false when the command never ran.
func runPTY(cmd *exec.Cmd, stdin io.Reader, stdout io.Writer) (started bool, err error) {
	// pty.Start only attaches the terminal to unset streams.
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return false, err
	}
	defer ptmx.Close()

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_ = pty.InheritSize(f, ptmx)

		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		defer func() {
			signal.Stop(winch)
			close(winch)
		}()
		go func() {
			for range winch {
				_ = pty.InheritSize(f, ptmx)
			}
		}()

		if state, rawErr := term.MakeRaw(int(f.Fd())); rawErr == nil {
			defer func() { _ = term.Restore(int(f.Fd()), state) }()
		}
	}

	stopInput := forwardInput(ptmx, stdin)
	if stdout == nil {
		stdout = io.Discard
	}
	drained := make(chan struct{})
	go func() {
		_, _ = io.Copy(stdout, ptmx)
		close(drained)
	}()

	err = cmd.Wait()
	stopInput()
	select {
	case <-drained:
	case <-time.After(outputDrainTimeout):
	}
	return true, err
}

// forwardInput copies stdin to the pty until the returned stop func is called.
// Stop interrupts a pending read so no input is consumed after the app exits.
func forwardInput(ptmx io.Writer, stdin io.Reader) (stop func()) {
	if stdin == nil {
		return func() {}
	}
	in, err := cancelreader.NewReader(stdin)
	if err != nil {
		go func() { _, _ = io.Copy(ptmx, stdin) }()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(ptmx, in)
		close(done)
	}()
	return func() {
		if in.Cancel() {
			<-done
		}
		_ = in.Close()
	}
}
