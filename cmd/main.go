// Package main runs the arunika voice client.
//
// Usage:
//
//	arunika-client [--config file] [--ws-url url] [--mic file] [--sink file] [--port n]
//	arunika-client watch [--addr host:port]
//
// The client connects to the conversational agent, streams the microphone
// on request and plays spoken responses. A local control API drives it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
