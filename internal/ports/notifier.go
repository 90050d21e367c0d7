package ports

import "context"

// Event is one status-stream message, encoded as {"event": ..., "data": ...}.
type Event struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
}

type Notifier interface {
	Publish(ctx context.Context, event Event)
}
