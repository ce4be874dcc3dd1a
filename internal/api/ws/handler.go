package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/app"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devshell/internal/session"
	"github.com/GriffinCanCode/devshell/internal/shared/utils"
	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/shell/manager"
	"github.com/GriffinCanCode/devshell/internal/terminal"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	maxFrameSize = 4 << 20
)

// Handler serves terminal sessions over WebSocket.
type Handler struct {
	factory  *app.Factory
	sessions *session.Registry
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a terminal WebSocket handler.
func NewHandler(factory *app.Factory, sessions *session.Registry, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		factory:  factory,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS middleware decides
			},
		},
	}
}

// HandleConnection upgrades the request and runs one terminal session
// until the client disconnects or the session is closed.
func (h *Handler) HandleConnection(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		user = h.factory.Config().Shell.User
	}
	if err := utils.ValidateUsername(user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	sh := h.factory.NewShell()
	sess := h.sessions.Open(sh, c.ClientIP(), func() {
		conn.Close()
	})
	log := h.logger.With(
		zap.String("session_id", string(sess.ID)),
		zap.String("request_id", tracing.RequestID(c.Request.Context())),
	)
	log.Info("terminal connected", zap.String("user", user))

	cl := newClient(conn, h.metrics, log)
	term := h.factory.NewTerminal(sh, cl, user)

	ctx, cancel := context.WithCancel(context.Background())
	s := &connSession{
		client:  cl,
		shell:   sh,
		term:    term,
		factory: h.factory,
		logger:  log,
		ctx:     ctx,
	}

	cl.send(serverFrame{Type: typeMode, SessionID: string(sess.ID), Mode: string(sh.Mode())})
	term.Start(sh.WelcomeMessage())

	if h.factory.Config().Shell.AutoSandbox {
		s.enableSandbox(nil)
	}

	s.readLoop()

	cancel()
	term.Close()
	_ = h.sessions.Close(sess.ID)
	s.wg.Wait()
	cl.close()
}

// connSession is the per-connection state behind HandleConnection.
type connSession struct {
	client  *client
	shell   *manager.Manager
	term    *terminal.Terminal
	factory *app.Factory
	logger  *zap.Logger
	ctx     context.Context
	wg      sync.WaitGroup
}

func (s *connSession) readLoop() {
	conn := s.client.conn
	conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			s.client.sendError("malformed frame")
			continue
		}
		s.client.metrics.RecordWSMessage("in", frame.Type)
		s.dispatch(frame)
	}
}

func (s *connSession) dispatch(frame clientFrame) {
	switch frame.Type {
	case typeInput:
		if err := utils.ValidateInput(frame.Data); err != nil {
			s.client.sendError(err.Error())
			return
		}
		s.term.HandleInput(frame.Data)
	case typeResize:
		if frame.Cols > 0 && frame.Rows > 0 {
			s.shell.Resize(frame.Cols, frame.Rows)
		}
	case typeSandbox:
		if err := utils.ValidateMountFiles(frame.Files); err != nil {
			s.client.sendError(err.Error())
			return
		}
		s.enableSandbox(frame.Files)
	case typeFallback:
		s.shell.FallbackToMock()
		s.term.Redraw()
		s.sendMode()
	case typeTeardown:
		s.shell.TeardownSandboxed()
		s.term.Redraw()
		s.sendMode()
	case typePing:
		s.client.send(serverFrame{Type: typePong})
	default:
		s.client.sendError(fmt.Sprintf("unknown message type %q", frame.Type))
	}
}

// enableSandbox boots the sandbox in the background. files nil mounts the
// configured project, if any.
func (s *connSession) enableSandbox(files map[string]string) {
	s.term.Notify(shell.Cyan("Starting sandbox..."))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		onReady := func(port int, url string) {
			s.client.send(serverFrame{Type: typeServerReady, Port: port, URL: url})
			s.term.Notify(shell.Green(fmt.Sprintf("Server ready on port %d: %s", port, url)))
		}

		var err error
		if files != nil {
			err = s.shell.EnableSandboxed(s.ctx, files, onReady)
		} else {
			err = s.factory.EnableSandbox(s.ctx, s.shell, onReady)
		}
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("sandbox unavailable", zap.Error(err))
			s.client.sendError(err.Error())
			s.term.Notify(shell.Yellow("Sandbox unavailable, using simulated shell: " + err.Error()))
		} else {
			s.term.Notify(shell.Green("Sandbox ready."))
		}
		s.sendMode()
	}()
}

func (s *connSession) sendMode() {
	s.client.send(serverFrame{
		Type:  typeMode,
		Mode:  string(s.shell.Mode()),
		Ready: s.shell.Ready(),
		URL:   s.shell.ServerURL(),
	})
}
