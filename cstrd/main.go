// Command cstrd runs the CSTR plant simulator, either as a real-time
// Modbus-facing daemon or as an offline batch reporter.
package main

import "github.com/tanklab/cstr/cstrd/cmd"

func main() {
	cmd.Execute()
}
