// Package main is the stripsync entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/pfcontrol/stripsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
