// Command regslave runs scripted register sessions and packet streams
// against a model of a register-addressed slave device.
package main

import "github.com/sarchlab/regslave/regslave/cmd"

func main() {
	cmd.Execute()
}
