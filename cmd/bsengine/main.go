// Command bsengine runs the battleships placement-probability engine: an
// HTTP/WebSocket server, a line protocol for terminals and bots, and
// offline tools for inspecting boards and records.
package main

import (
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
