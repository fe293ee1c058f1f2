// The main package for the notesaver executable.
package main

import (
	"github.com/JakeFAU/notesaver/cmd"
)

func main() {
	cmd.Execute()
}
