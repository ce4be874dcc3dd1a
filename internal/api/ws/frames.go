package ws

import (
	"github.com/bytedance/sonic"
)

// Client frame types.
const (
	typeInput    = "input"
	typeResize   = "resize"
	typeSandbox  = "sandbox"
	typeFallback = "fallback"
	typeTeardown = "teardown"
	typePing     = "ping"
)

// Server frame types.
const (
	typeOutput      = "output"
	typeServerReady = "server_ready"
	typeMode        = "mode"
	typeError       = "error"
	typePong        = "pong"
)

// clientFrame is a message from the browser terminal.
type clientFrame struct {
	Type  string            `json:"type"`
	Data  string            `json:"data,omitempty"`
	Cols  int               `json:"cols,omitempty"`
	Rows  int               `json:"rows,omitempty"`
	Files map[string]string `json:"files,omitempty"`
}

// serverFrame is a message to the browser terminal.
type serverFrame struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Ready     bool   `json:"ready,omitempty"`
	Port      int    `json:"port,omitempty"`
	URL       string `json:"url,omitempty"`
	Message   string `json:"message,omitempty"`
}

func decodeFrame(data []byte) (clientFrame, error) {
	var f clientFrame
	err := sonic.Unmarshal(data, &f)
	return f, err
}

func encodeFrame(f serverFrame) ([]byte, error) {
	return sonic.Marshal(f)
}
