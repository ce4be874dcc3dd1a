package ws

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
)

// client owns the write side of a connection. Frames are queued and
// written by a single pump goroutine.
type client struct {
	conn    *websocket.Conn
	metrics *monitoring.Metrics
	logger  *zap.Logger

	out  chan serverFrame
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once
	doneOnce sync.Once
	wg       sync.WaitGroup
}

var _ io.Writer = (*client)(nil)

func newClient(conn *websocket.Conn, metrics *monitoring.Metrics, logger *zap.Logger) *client {
	c := &client{
		conn:    conn,
		metrics: metrics,
		logger:  logger,
		out:     make(chan serverFrame, sendBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.writePump()
	return c
}

// Write queues terminal output. It blocks while the queue is full and
// drops output once the client is closed.
func (c *client) Write(p []byte) (int, error) {
	c.send(serverFrame{Type: typeOutput, Data: string(p)})
	return len(p), nil
}

func (c *client) send(f serverFrame) {
	select {
	case c.out <- f:
	case <-c.done:
	}
}

func (c *client) sendError(msg string) {
	c.send(serverFrame{Type: typeError, Message: msg})
}

func (c *client) writePump() {
	defer c.wg.Done()
	defer c.shutdown()
	for {
		select {
		case f := <-c.out:
			if err := c.write(f); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.conn.Close()
				return
			}
		case <-c.stop:
			c.drain()
			return
		}
	}
}

func (c *client) drain() {
	for {
		select {
		case f := <-c.out:
			if err := c.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(f serverFrame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", f.Type)
	return nil
}

func (c *client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// close writes the queued frames, stops the pump and closes the
// connection.
func (c *client) close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	c.conn.Close()
}
