package web

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// historySize is the number of recent events replayed to a new subscriber.
const historySize = 32

// LogEvent is one log line sent over SSE.
type LogEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// LogBroadcaster distributes log lines to SSE clients.
type LogBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	history []string
}

// NewLogBroadcaster creates a new broadcaster.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages, already
// holding the most recent history, and a cleanup function. The caller
// must call the cleanup when done (e.g. on client disconnect).
func (b *LogBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	for _, msg := range b.history {
		ch <- msg
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients as
// {"t":"...","l":"info","msg":"..."}. Slow clients may miss messages.
func (b *LogBroadcaster) Broadcast(level, msg string) {
	evt := LogEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, payload)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// LogWriter returns an io.Writer that broadcasts every line written to it.
// Lines in logrus text format are split into level and message.
func LogWriter(b *LogBroadcaster) *logWriter {
	return &logWriter{b: b}
}

type logWriter struct {
	b *LogBroadcaster
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		w.b.Broadcast(parseLogLine(line))
	}
	return len(p), nil
}

// parseLogLine extracts level and message from a logrus text line such as
//
//	time="..." level=debug msg="Instant stop" axis=AXIS1
//
// Trailing fields are kept after the message. Other lines are "info".
func parseLogLine(line string) (level, msg string) {
	i := strings.Index(line, "level=")
	if i < 0 {
		return "info", line
	}
	rest := line[i+len("level="):]
	level, rest, _ = strings.Cut(rest, " ")

	j := strings.Index(rest, "msg=")
	if j < 0 {
		return level, strings.TrimSpace(rest)
	}
	rest = rest[j+len("msg="):]
	if strings.HasPrefix(rest, `"`) {
		if quoted, err := strconv.QuotedPrefix(rest); err == nil {
			msg, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		}
	} else {
		msg, rest, _ = strings.Cut(rest, " ")
	}
	if fields := strings.TrimSpace(rest); fields != "" {
		msg += " " + fields
	}
	return level, msg
}
