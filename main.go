// SPDX-License-Identifier: MPL-2.0

package main

import cmd "upmwrap/cmd/upmwrap"

func main() {
	cmd.Execute()
}
