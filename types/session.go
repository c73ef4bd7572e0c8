package types

type Notifier interface {
	Success(message string)
	Error(message string)
}

type SessionState interface {
	User() (*User, bool)
	SetUser(user User)
}

// UserMessage is implemented by errors that carry a message fit for display.
type UserMessage interface {
	UserMessage() string
}
