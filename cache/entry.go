package cache

import (
	"time"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

type Entry struct {
	Key            Key
	Status         Status
	Data           interface{}
	Err            error
	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time
	Invalidated    bool
	IsFetching     bool
}

func (e Entry) HasData() bool {
	return e.Data != nil
}

// IsStale is true when the entry must be refetched before it can be served.
func (e Entry) IsStale(staleTime time.Duration, now time.Time) bool {
	if e.Invalidated || !e.HasData() || e.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(e.UpdatedAt) >= staleTime
}

func Data[T any](e Entry) (T, bool) {
	data, ok := e.Data.(T)
	return data, ok
}
