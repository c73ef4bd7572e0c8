package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/notify"
)

type userFacingError struct {
	message string
}

func (e userFacingError) Error() string {
	return "remote: " + e.message
}

func (e userFacingError) UserMessage() string {
	return e.message
}

func newTestRunner() (*Runner, *notify.Recorder) {
	log := logger.NewZapWrapper(zap.NewNop())
	recorder := notify.NewRecorder(nil)
	return NewRunner(cache.NewStore(log), recorder, log), recorder
}

func counterMutation(key cache.Key, call func(ctx context.Context, delta int) (int, error)) Mutation[int, int] {
	return Mutation[int, int]{
		Name: "increment",
		Keys: []cache.Key{key},
		Optimistic: func(tx *cache.Transaction, delta int) error {
			_, err := tx.Update(key, func(old interface{}, ok bool) interface{} {
				if !ok {
					return nil
				}
				return old.(int) + delta
			})
			return err
		},
		Call:           call,
		SuccessMessage: "Saved",
		ErrorMessage:   "Failed to save",
	}
}

func TestRun_SuccessKeepsOptimisticState(t *testing.T) {
	runner, recorder := newTestRunner()
	key := cache.NewKey("counter")
	_, err := runner.Store().Set(key, func(old interface{}, ok bool) interface{} { return 1 })
	require.NoError(t, err)

	result, err := Run(context.Background(), runner, counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		return 42, nil
	}), 2)
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	entry, ok := runner.Store().Get(key)
	require.True(t, ok)
	assert.Equal(t, 3, entry.Data)

	last, ok := recorder.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Message{Level: notify.LevelSuccess, Text: "Saved"}, last)
}

func TestRun_FailureRestoresSnapshot(t *testing.T) {
	runner, recorder := newTestRunner()
	key := cache.NewKey("counter")
	_, err := runner.Store().Set(key, func(old interface{}, ok bool) interface{} { return 1 })
	require.NoError(t, err)
	before, _ := runner.Store().Get(key)

	failure := errors.New("connection reset")
	var seen interface{}
	_, err = Run(context.Background(), runner, counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		entry, _ := runner.Store().Get(key)
		seen = entry.Data
		return 0, failure
	}), 2)
	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, seen)

	after, ok := runner.Store().Get(key)
	require.True(t, ok)
	assert.Equal(t, before.Data, after.Data)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.Status, after.Status)

	last, ok := recorder.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Message{Level: notify.LevelError, Text: "Failed to save"}, last)
}

func TestRun_ErrorMessageFromError(t *testing.T) {
	runner, recorder := newTestRunner()
	key := cache.NewKey("counter")

	_, err := Run(context.Background(), runner, counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		return 0, userFacingError{message: "title should not be empty"}
	}), 1)
	require.Error(t, err)

	last, _ := recorder.Last()
	assert.Equal(t, "title should not be empty", last.Text)
}

func TestRun_MissingEntryStaysMissingAfterRollback(t *testing.T) {
	runner, _ := newTestRunner()
	key := cache.NewKey("counter")

	_, err := Run(context.Background(), runner, counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		return 0, errors.New("boom")
	}), 1)
	require.Error(t, err)

	_, ok := runner.Store().Get(key)
	assert.False(t, ok)
}

func TestRun_PendingAndSettled(t *testing.T) {
	runner, _ := newTestRunner()
	key := cache.NewKey("counter")

	var pendingDuringCall bool
	var settled int
	m := counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		pendingDuringCall = runner.IsPending("increment")
		return 0, nil
	})
	m.OnSettled = func(delta int) { settled++ }

	_, err := Run(context.Background(), runner, m, 1)
	require.NoError(t, err)
	assert.True(t, pendingDuringCall)
	assert.False(t, runner.IsPending("increment"))
	assert.Equal(t, 1, settled)
}

func TestRun_SuccessInvalidatesKeys(t *testing.T) {
	runner, _ := newTestRunner()
	key := cache.NewKey("counter")
	other := cache.NewKey("posts")
	_, err := runner.Store().Set(other, func(old interface{}, ok bool) interface{} { return "page" })
	require.NoError(t, err)

	var reconciled int
	m := counterMutation(key, func(ctx context.Context, delta int) (int, error) {
		return 7, nil
	})
	m.Invalidate = []cache.Key{other}
	m.OnSuccess = func(delta int, result int) { reconciled = result }

	_, err = Run(context.Background(), runner, m, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, reconciled)

	entry, ok := runner.Store().Get(other)
	require.True(t, ok)
	assert.True(t, entry.Invalidated)
}
