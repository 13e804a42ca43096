package kiln

import (
	"fmt"
	"log"
	"sync"

	"github.com/TheBitDrifter/bark"
)

// Logger is the contextual logging contract: bad commands are logged with
// context and skipped, invariant violations warn once per warning key (see
// warnOnceRegistry), and system update errors are logged with the system's
// name before the frame continues.
type Logger interface {
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// barkLogger is the default Logger. It prints through the standard
// library logger and uses bark only for its trace-wrapping role, the
// same way warehouse's entity.go/query.go wrap panics with
// bark.AddTrace — bark itself has no leveled output of its own.
type barkLogger struct{}

func newBarkLogger() Logger { return barkLogger{} }

func (barkLogger) Warn(msg string, keyvals ...any) {
	log.Print("WARN: " + bark.AddTrace(fmtLog(msg, keyvals)).Error())
}

func (barkLogger) Error(msg string, keyvals ...any) {
	log.Print("ERROR: " + bark.AddTrace(fmtLog(msg, keyvals)).Error())
}

func fmtLog(msg string, keyvals []any) error {
	return &logError{msg: msg, keyvals: keyvals}
}

type logError struct {
	msg     string
	keyvals []any
}

func (e *logError) Error() string {
	s := e.msg
	for i := 0; i+1 < len(e.keyvals); i += 2 {
		key, _ := e.keyvals[i].(string)
		s += fmt.Sprintf(" %s=%v", key, e.keyvals[i+1])
	}
	return s
}

// warnOnceRegistry tracks which warning keys have already been logged, so
// each key is logged the first time and suppressed afterward. The executor
// uses one fixed key per warning kind (e.g. "unknown-opcode"), so only the
// first occurrence of each kind is logged, whichever caller triggered it.
type warnOnceRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newWarnOnceRegistry() *warnOnceRegistry {
	return &warnOnceRegistry{seen: make(map[string]struct{})}
}

func (w *warnOnceRegistry) warn(logger Logger, key, msg string, keyvals ...any) {
	w.mu.Lock()
	_, already := w.seen[key]
	if !already {
		w.seen[key] = struct{}{}
	}
	w.mu.Unlock()
	if !already && logger != nil {
		logger.Warn(msg, keyvals...)
	}
}
