/*
 * Main entry point for NeuronDynamic
 *
 * Serves MCP tools generated from a PostgreSQL schema
 */

package main

import (
	"github.com/neurondb/NeuronDynamic/internal/cli"
	"github.com/neurondb/NeuronDynamic/internal/server"
)

/* Set with -ldflags "-X main.version=..." */
var version = ""

func main() {
	if version != "" {
		server.Version = version
	}
	cli.Execute()
}
