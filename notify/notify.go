package notify

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Message struct {
	Level Level
	Text  string
}

// LogNotifier writes user notifications to the log.
type LogNotifier struct {
	logger types.Logger
}

func NewLogNotifier(logger types.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(message string) {
	n.logger.Info(message, zap.String("notification", string(LevelSuccess)))
}

func (n *LogNotifier) Error(message string) {
	n.logger.Warn(message, zap.String("notification", string(LevelError)))
}

// Recorder keeps every notification in order and forwards it to next when set.
type Recorder struct {
	next     types.Notifier
	messages []Message
	mu       sync.Mutex
}

func NewRecorder(next types.Notifier) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Success(message string) {
	r.record(Message{Level: LevelSuccess, Text: message})
	if r.next != nil {
		r.next.Success(message)
	}
}

func (r *Recorder) Error(message string) {
	r.record(Message{Level: LevelError, Text: message})
	if r.next != nil {
		r.next.Error(message)
	}
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = nil
}

func (r *Recorder) record(message Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, message)
}

// ErrorMessage picks the text shown for err, falling back when err carries
// nothing meant for users.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var um types.UserMessage
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return fallback
}
