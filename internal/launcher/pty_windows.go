// SPDX-License-Identifier: MPL-2.0

//go:build windows

package launcher

import (
	"io"
	"os/exec"
)

func runPTY(_ *exec.Cmd, _ io.Reader, _ io.Writer) (bool, error) {
	return false, errPTYUnsupported
}
