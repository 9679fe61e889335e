// Package cli provides the interactive accounts command-line client.
//
// It wires configuration, the gRPC client and a REPL. A background watcher
// pings the service and reports when it goes offline or comes back.
// App.Run blocks until the user exits.
package cli
