package shell

import "context"

// Shell is a command backend driven by a terminal session.
type Shell interface {
	// Execute runs one command line and streams display-ready output chunks.
	// The returned channel is always closed eventually.
	Execute(ctx context.Context, command string) <-chan string

	// Interrupt cancels the command in flight, if any.
	Interrupt()

	// Resize records terminal dimensions and forwards them to a running
	// process when there is one.
	Resize(cols, rows int)

	Cwd() string
	Ready() bool
	Prompt() string
	WelcomeMessage() []string
}

// ServerReadyEvent reports a process that started listening on a port.
type ServerReadyEvent struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// ServerReadyFunc receives server-ready notifications.
type ServerReadyFunc func(port int, url string)

// CDMarker prefixes control lines a dispatcher emits to change the
// working directory. Such lines never reach the display.
const CDMarker = "__CD__:"

// InterruptedLine is yielded once when a command is interrupted.
var InterruptedLine = Yellow("^C") + "\r\n"

// Emit sends line on out unless ctx is done first.
func Emit(ctx context.Context, out chan<- string, line string) bool {
	select {
	case out <- line:
		return true
	case <-ctx.Done():
		return false
	}
}

// Line terminates s for terminal display.
func Line(s string) string {
	return s + "\r\n"
}

// Closed returns an already closed output channel.
func Closed() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
