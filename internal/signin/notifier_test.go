package signin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
)

func TestNotifier_OncePerDistinctError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFormStateStore()
	require.NoError(t, store.Save(ctx, "form-1", &FormState{CreatedAt: time.Now()}))
	n := NewNotifier(store)

	notifications := 0
	notify := func(code, msg string) {
		show, err := n.Notify(ctx, "form-1", code, msg)
		require.NoError(t, err)
		if show {
			notifications++
		}
	}

	notify(CodeUnauthorized, "Unauthorized access, Please sign in again.")
	notify(CodeUnauthorized, "Unauthorized access, Please sign in again.")
	notify(CodeUnauthorized, "Unauthorized access, Please sign in again.")
	assert.Equal(t, 1, notifications)

	// message change re-triggers
	notify("QuotaExceeded", "first")
	notify("QuotaExceeded", "second")
	assert.Equal(t, 3, notifications)

	// code change re-triggers
	notify(CodeNotAllowedAccess, "second")
	assert.Equal(t, 4, notifications)
}

func TestNotifier_PerFormInstance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFormStateStore()
	require.NoError(t, store.Save(ctx, "form-1", &FormState{}))
	require.NoError(t, store.Save(ctx, "form-2", &FormState{}))
	n := NewNotifier(store)

	first, err := n.Notify(ctx, "form-1", CodeUnauthorized, "msg")
	require.NoError(t, err)
	second, err := n.Notify(ctx, "form-2", CodeUnauthorized, "msg")
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
}

func TestNotifier_EmptyMessageAndUnknownForm(t *testing.T) {
	ctx := context.Background()
	n := NewNotifier(NewMemoryFormStateStore())

	show, err := n.Notify(ctx, "form-1", "", "")
	assert.NoError(t, err)
	assert.False(t, show)

	_, err = n.Notify(ctx, "missing", CodeUnauthorized, "msg")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
