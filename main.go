// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/fauxterm/fauxterm/cmd/fauxterm"

func main() {
	cmd.Execute()
}
