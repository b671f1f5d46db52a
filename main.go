// The main package for the jobradar executable.
package main

import (
	"github.com/hireloop/jobradar/cmd"
)

func main() {
	cmd.Execute()
}
