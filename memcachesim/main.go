// Package main runs the memory cache simulator.
package main

import (
	"github.com/sarchlab/memcoherence/memcachesim/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
