// Command server serves browser terminals over WebSocket.
//
// Each connection to /terminal gets its own session: a simulated shell
// that can be switched to a sandboxed runtime on request. Sessions are
// listed at /sessions and can be force-closed with DELETE /sessions/:id.
//
// Configuration comes from the environment (PORT, LOG_LEVEL,
// SHELL_SANDBOX_AUTO, SANDBOX_ROOT, ...); flags override it.
//
//	./server -port 8080 -sandbox -manifest ./devshell.yaml
//
// SIGINT and SIGTERM close all sessions and shut down gracefully.
package main
