// Package shell defines the backend contract shared by every command shell
// a terminal session can drive, along with the tokenizer and the display
// helpers the backends use to produce output lines.
//
// A backend streams output for one command on a channel. The channel is
// closed by the backend when the command finishes, is interrupted, or the
// caller's context is cancelled.
package shell
