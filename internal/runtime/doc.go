/*
Package runtime is the process-execution port used by the sandboxed shell.

A Runtime owns a private workspace directory, accepts mounted file trees,
spawns programs attached to a pseudo-terminal and reports processes that
start listening on a TCP port.

Local is the host implementation:
  - boot verifies PTY support and creates the workspace
  - spawned programs run inside the workspace with TERM=xterm-256color
  - /proc/net/tcp and /proc/net/tcp6 are polled for new LISTEN sockets
*/
package runtime
