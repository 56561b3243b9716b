package adapter

import "context"

// PassSyncNotifier is the excluded-collaborator boundary that reflects field
// values onto a customer's digital pass. The core composes the values and
// returns immediately; delivery is the collaborator's problem.
type PassSyncNotifier interface {
	NotifyFieldUpdate(ctx context.Context, customerPassID string, fields map[string]string) error
}

// NoopPassSync satisfies PassSyncNotifier when no delivery integration is
// configured.
type NoopPassSync struct{}

func (NoopPassSync) NotifyFieldUpdate(ctx context.Context, customerPassID string, fields map[string]string) error {
	return nil
}
