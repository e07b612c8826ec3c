package signin

import (
	"context"
	"fmt"
)

// Notifier decides whether a resolved interactive error should be toasted.
// It notifies once per distinct (code, message) per form instance.
type Notifier struct {
	store FormStateStore
}

func NewNotifier(store FormStateStore) *Notifier {
	return &Notifier{store: store}
}

// Notify compares (code, message) with the last notified value of the form and
// records it when it changed. The returned bool says whether to show a toast.
func (n *Notifier) Notify(ctx context.Context, formID, code, message string) (bool, error) {
	if message == "" {
		return false, nil
	}
	state, err := n.store.Load(ctx, formID)
	if err != nil {
		return false, fmt.Errorf("notifier: %w", err)
	}
	if state.LastCode == code && state.LastMessage == message {
		return false, nil
	}
	state.LastCode = code
	state.LastMessage = message
	if err := n.store.Save(ctx, formID, state); err != nil {
		return false, fmt.Errorf("notifier: %w", err)
	}
	return true, nil
}
