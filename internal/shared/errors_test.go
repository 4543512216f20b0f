package shared_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/shared"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		expected string
		isNil    bool
	}{
		{
			name:    "nil error",
			err:     nil,
			context: "some context",
			isNil:   true,
		},
		{
			name:     "simple error",
			err:      errors.New("original"),
			context:  "wrapper",
			expected: "wrapper: original",
		},
		{
			name:     "empty context",
			err:      errors.New("original"),
			context:  "",
			expected: "original",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shared.Wrap(tt.err, tt.context)
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result.Error())
			assert.True(t, errors.Is(result, tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	err := shared.Wrapf(shared.ErrNotFound, "task %s", "abc")
	require.NotNil(t, err)
	assert.Equal(t, "task abc: not found", err.Error())
	assert.True(t, shared.IsNotFound(err))

	assert.Nil(t, shared.Wrapf(nil, "task %s", "abc"))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{"nil", nil, shared.KindUnknown},
		{"plain error", errors.New("boom"), shared.KindUnknown},
		{"not found", shared.ErrNotFound, shared.KindNotFound},
		{"validation wrapped", fmt.Errorf("check: %w", shared.ErrValidation), shared.KindValidation},
		{"conflict", shared.Wrap(shared.ErrConflict, "update task"), shared.KindConflict},
		{"orphaned event", shared.ErrOrphanedEvent, shared.KindOrphanedEvent},
		{"dependency failure", shared.ErrDependencyFailure, shared.KindDependencyFailure},
		{"invariant", shared.Invariant(false, "broken"), shared.KindInvariantViolated},
		{"canceled", context.Canceled, shared.KindCanceled},
		{"deadline", context.DeadlineExceeded, shared.KindTimeout},
		{
			name: "canceled wins over not found",
			err:  errors.Join(shared.ErrNotFound, context.Canceled),
			want: shared.KindCanceled,
		},
		{
			name: "orphaned wins over dependency failure",
			err:  errors.Join(shared.ErrDependencyFailure, shared.ErrOrphanedEvent),
			want: shared.KindOrphanedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.KindOf(tt.err))
		})
	}
}

func TestMarkKind(t *testing.T) {
	t.Run("classifies foreign error", func(t *testing.T) {
		base := errors.New("no rows in result set")
		marked := shared.MarkKind(base, shared.KindNotFound)

		assert.True(t, shared.IsNotFound(marked))
		assert.True(t, errors.Is(marked, base))
	})

	t.Run("idempotent", func(t *testing.T) {
		marked := shared.MarkKind(errors.New("x"), shared.KindConflict)
		assert.Equal(t, marked, shared.MarkKind(marked, shared.KindConflict))
	})

	t.Run("nil returns sentinel", func(t *testing.T) {
		assert.Equal(t, shared.ErrTimeout, shared.MarkKind(nil, shared.KindTimeout))
	})

	t.Run("unknown kind leaves error alone", func(t *testing.T) {
		base := errors.New("x")
		assert.Equal(t, base, shared.MarkKind(base, shared.KindUnknown))
	})
}

func TestHasKind(t *testing.T) {
	err := shared.Wrap(shared.ErrConflict, "save")
	assert.True(t, shared.HasKind(err, shared.KindConflict))
	assert.False(t, shared.HasKind(err, shared.KindNotFound))
}

func TestSentinelOf(t *testing.T) {
	assert.Equal(t, shared.ErrOrphanedEvent, shared.SentinelOf(shared.KindOrphanedEvent))
	assert.Nil(t, shared.SentinelOf(shared.KindUnknown))
	assert.Nil(t, shared.SentinelOf(shared.KindCanceled))
}

func TestInvariant(t *testing.T) {
	assert.Nil(t, shared.Invariant(true, "fine"))

	err := shared.InvariantF(false, "count %d out of range", 7)
	require.NotNil(t, err)
	assert.True(t, shared.IsInvariantViolated(err))
	assert.Contains(t, err.Error(), "count 7 out of range")
}

func TestCause(t *testing.T) {
	root := errors.New("root")
	wrapped := shared.Wrap(shared.Wrap(root, "inner"), "outer")
	assert.Equal(t, root, shared.Cause(wrapped))

	assert.Nil(t, shared.Cause(nil))
	plain := errors.New("plain")
	assert.Equal(t, plain, shared.Cause(plain))
}

func TestUnwrapAll(t *testing.T) {
	root := errors.New("root")
	err := shared.Wrap(root, "ctx")

	all := shared.UnwrapAll(err)
	require.Len(t, all, 2)
	assert.Equal(t, err, all[0])
	assert.Equal(t, root, all[1])

	assert.Nil(t, shared.UnwrapAll(nil))
}
