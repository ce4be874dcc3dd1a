package runtime

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// tcpListen is the st column value for LISTEN in /proc/net/tcp.
const tcpListen = "0A"

var defaultProcFiles = []string{"/proc/net/tcp", "/proc/net/tcp6"}

// parseListening returns the local ports in LISTEN state from a
// /proc/net/tcp formatted table.
func parseListening(r io.Reader) (map[int]struct{}, error) {
	ports := make(map[int]struct{})

	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[3] != tcpListen {
			continue
		}

		idx := strings.LastIndexByte(fields[1], ':')
		if idx < 0 {
			continue
		}
		port, err := strconv.ParseUint(fields[1][idx+1:], 16, 16)
		if err != nil {
			continue
		}
		ports[int(port)] = struct{}{}
	}

	return ports, scanner.Err()
}

func listeningPorts(files []string) (map[int]struct{}, error) {
	all := make(map[int]struct{})
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		ports, err := parseListening(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		for p := range ports {
			all[p] = struct{}{}
		}
	}
	return all, nil
}

// portWatcher reports ports that start listening after it was created.
type portWatcher struct {
	files    []string
	interval time.Duration
	known    map[int]struct{}
	emit     func(port int)
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

func newPortWatcher(files []string, interval time.Duration, emit func(int), logger *zap.Logger) *portWatcher {
	baseline, err := listeningPorts(files)
	if err != nil {
		logger.Debug("port baseline unavailable", zap.Error(err))
		baseline = make(map[int]struct{})
	}
	return &portWatcher{
		files:    files,
		interval: interval,
		known:    baseline,
		emit:     emit,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *portWatcher) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *portWatcher) poll() {
	current, err := listeningPorts(w.files)
	if err != nil {
		w.logger.Debug("port poll failed", zap.Error(err))
		return
	}
	for _, port := range newPorts(w.known, current) {
		w.known[port] = struct{}{}
		w.emit(port)
	}
}

func (w *portWatcher) close() {
	close(w.stop)
	<-w.done
}

// newPorts lists ports in current that are absent from known, ascending.
func newPorts(known, current map[int]struct{}) []int {
	var fresh []int
	for p := range current {
		if _, ok := known[p]; !ok {
			fresh = append(fresh, p)
		}
	}
	slices.Sort(fresh)
	return fresh
}
