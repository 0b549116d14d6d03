// The main package for the siteclone executable.
package main

import (
	"github.com/JakeFAU/siteclone/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
