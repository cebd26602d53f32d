// The main package for the diftar2energyid executable.
package main

import (
	"github.com/JakeFAU/diftar2energyid/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
