// Package session tracks live terminal sessions so they can be listed and
// force-closed from the HTTP API.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/shared/id"
	"github.com/GriffinCanCode/devshell/internal/shell/manager"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session: not found")

// Session is one mounted terminal.
type Session struct {
	ID         id.SessionID
	RemoteAddr string
	StartedAt  time.Time
	Shell      *manager.Manager

	onClose   func()
	closeOnce sync.Once
}

// close unmounts the session: the sandbox is torn down and the transport
// hook runs.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.Shell.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Info is the public representation of a session
type Info struct {
	ID           string    `json:"id"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Mode         string    `json:"mode"`
	Cwd          string    `json:"cwd"`
	SandboxReady bool      `json:"sandbox_ready"`
	ServerURL    string    `json:"server_url,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	return Info{
		ID:           string(s.ID),
		RemoteAddr:   s.RemoteAddr,
		StartedAt:    s.StartedAt,
		Mode:         string(s.Shell.Mode()),
		Cwd:          s.Shell.Cwd(),
		SandboxReady: s.Shell.SandboxReady(),
		ServerURL:    s.Shell.ServerURL(),
		LastError:    s.Shell.LastError(),
	}
}

// Registry holds the live sessions.
type Registry struct {
	ids     id.Source
	logger  *zap.Logger
	metrics *monitoring.Metrics

	sessions sync.Map // map[id.SessionID]*Session
	mu       sync.Mutex
	count    int
}

// NewRegistry creates a registry drawing IDs from ids.
func NewRegistry(ids id.Source, logger *zap.Logger, metrics *monitoring.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{ids: ids, logger: logger, metrics: metrics}
}

// Open registers a session. onClose runs once when the session is closed
// through the registry.
func (r *Registry) Open(shell *manager.Manager, remoteAddr string, onClose func()) *Session {
	s := &Session{
		ID:         r.ids.NewSessionID(),
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
		Shell:      shell,
		onClose:    onClose,
	}
	r.sessions.Store(s.ID, s)
	r.adjust(1)

	r.logger.Info("session opened", zap.String("session_id", string(s.ID)), zap.String("remote", remoteAddr))
	return s
}

// Get looks up a session.
func (r *Registry) Get(sid id.SessionID) (*Session, bool) {
	v, ok := r.sessions.Load(sid)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// List returns all sessions ordered by ID, which is creation order.
func (r *Registry) List() []Info {
	var infos []Info
	r.sessions.Range(func(_, value any) bool {
		infos = append(infos, value.(*Session).Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close removes and unmounts a session.
func (r *Registry) Close(sid id.SessionID) error {
	v, ok := r.sessions.LoadAndDelete(sid)
	if !ok {
		return ErrNotFound
	}
	r.adjust(-1)
	v.(*Session).close()

	r.logger.Info("session closed", zap.String("session_id", string(sid)))
	return nil
}

// CloseAll unmounts every session.
func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, _ any) bool {
		_ = r.Close(key.(id.SessionID))
		return true
	})
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Registry) adjust(delta int) {
	r.mu.Lock()
	r.count += delta
	count := r.count
	r.mu.Unlock()
	r.metrics.SetSessionsActive(count)
}
