// Package notify queues user-facing notifications ("toasts").
//
// Transient notifications are delivered once by [Center.Drain]. Persistent ones stay active until
// dismissed, and showing a notification with an existing id replaces it in place.
package notify

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/shared"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a message shown to the user.
type Notification struct {
	ID         string    `json:"id"`
	Level      Level     `json:"level"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	Action     string    `json:"action,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notifier shows and dismisses notifications.
type Notifier interface {
	Show(n Notification) string
	Dismiss(id string)
}

// Center is an in-memory [Notifier] that also logs every notification.
type Center struct {
	mu     sync.Mutex
	active []Notification
	logger *log.Logger
	now    func() time.Time
}

// NewCenter creates a notification center logging to logger. A nil logger discards output.
func NewCenter(logger *log.Logger) *Center {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Center{logger: logger, now: time.Now}
}

// Show queues n and returns its id, generating one when n.ID is empty.
//
// An active notification with the same id is replaced, keeping its position.
func (c *Center) Show(n Notification) string {
	if n.ID == "" {
		n.ID = shared.GenerateID()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	n.CreatedAt = c.now()

	c.mu.Lock()
	if i := c.index(n.ID); i >= 0 {
		c.active[i] = n
	} else {
		c.active = append(c.active, n)
	}
	c.mu.Unlock()

	switch n.Level {
	case LevelError:
		c.logger.Error(n.Title, "message", n.Message, "id", n.ID)
	case LevelWarning:
		c.logger.Warn(n.Title, "message", n.Message, "id", n.ID)
	default:
		c.logger.Info(n.Title, "message", n.Message, "id", n.ID)
	}
	return n.ID
}

// Dismiss removes the notification with id. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		c.active = slices.Delete(c.active, i, i+1)
	}
}

// Active returns the notifications currently queued.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active)
}

// Get returns the active notification with id.
func (c *Center) Get(id string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		return c.active[i], true
	}
	return Notification{}, false
}

// Drain returns every active notification and drops the transient ones.
func (c *Center) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := slices.Clone(c.active)
	c.active = slices.DeleteFunc(c.active, func(n Notification) bool { return !n.Persistent })
	return out
}

func (c *Center) index(id string) int {
	return slices.IndexFunc(c.active, func(n Notification) bool { return n.ID == id })
}
