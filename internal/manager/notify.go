package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatd/pkg/types"
)

const defaultMaxNotices = 50

// Notifier is the log sink of the controller. User-visible messages are
// also kept in a bounded list the UI can poll. It never affects control flow.
type Notifier struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	notices []types.Notice
	max     int
}

// NewNotifier returns a Notifier writing to logger.
func NewNotifier(logger zerolog.Logger, max int) *Notifier {
	if max <= 0 {
		max = defaultMaxNotices
	}
	return &Notifier{logger: logger, max: max}
}

// Log records msg at info level; userVisible also queues it for the UI.
func (n *Notifier) Log(msg string, userVisible bool) {
	if n == nil {
		return
	}
	n.logger.Info().Bool("user_visible", userVisible).Msg(msg)
	if !userVisible {
		return
	}
	n.mu.Lock()
	n.notices = append(n.notices, types.Notice{Message: msg, TimeUnix: time.Now().Unix()})
	if len(n.notices) > n.max {
		n.notices = n.notices[len(n.notices)-n.max:]
	}
	n.mu.Unlock()
}

// Debug records msg at debug level.
func (n *Notifier) Debug(msg string) {
	if n == nil {
		return
	}
	n.logger.Debug().Msg(msg)
}

// Notices returns the queued user-visible messages, oldest first.
func (n *Notifier) Notices() []types.Notice {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Notice, len(n.notices))
	copy(out, n.notices)
	return out
}
