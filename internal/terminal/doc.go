/*
Package terminal implements the interactive line discipline that sits
between a raw keystroke stream and a shell.

It owns the input buffer, a bounded command history with arrow-key
browsing, and the executing gate that allows one command in flight at a
time. Output is written as terminal escape sequences to an io.Writer, so
the same state machine drives a WebSocket xterm client and a local raw-mode
TTY.

Keys handled while idle:

	Enter       \r or \n (\r\n counts once)
	Backspace   \x7f or \b
	Ctrl+C      \x03
	Ctrl+L      \x0c
	Up/Down     ESC [ A/B and ESC O A/B

While a command runs only Ctrl+C is honored. It interrupts the shell,
prints the interrupt marker and returns to the prompt at once; output the
abandoned command produces afterwards is dropped.
*/
package terminal
