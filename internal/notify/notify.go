// Package notify delivers user facing booking notifications.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Notifier shows success, error and progress messages. Calls are fire and forget.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Loading(msg string)
}

// Level of a recorded message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelLoading Level = "loading"
)

// Message is one recorded notification.
type Message struct {
	Level Level
	Text  string
}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Success(msg string) { n.logger.Info().Msg(msg) }

func (n *LogNotifier) Error(msg string) { n.logger.Warn().Msg(msg) }

func (n *LogNotifier) Loading(msg string) { n.logger.Debug().Msg(msg) }

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Success(msg string) {
	for _, n := range m {
		n.Success(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}

func (m Multi) Loading(msg string) {
	for _, n := range m {
		n.Loading(msg)
	}
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }

func (r *Recorder) Error(msg string) { r.add(LevelError, msg) }

func (r *Recorder) Loading(msg string) { r.add(LevelLoading, msg) }

func (r *Recorder) add(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text})
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message of level.
func (r *Recorder) Last(level Level) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Level == level {
			return r.messages[i], true
		}
	}
	return Message{}, false
}
