// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/nativeship/nativeship/cmd/nativeship"

func main() {
	cmd.Execute()
}
