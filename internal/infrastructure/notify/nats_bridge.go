package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
)

// NATSBridge republishes status events on "<prefix>.<event>" with ':' replaced by '.'.
type NATSBridge struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.Notifier = (*NATSBridge)(nil)

func ConnectNATS(ctx context.Context, url string, prefix string) (*NATSBridge, error) {
	conn, err := nats.Connect(url,
		nats.Name("newsroom"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(ctx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	return NewNATSBridge(conn, prefix), nil
}

func NewNATSBridge(conn *nats.Conn, prefix string) *NATSBridge {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "newsroom.status"
	}
	return &NATSBridge{conn: conn, prefix: prefix}
}

// Subject maps an event name onto its NATS subject.
func (b *NATSBridge) Subject(eventName string) string {
	return b.prefix + "." + strings.ReplaceAll(eventName, ":", ".")
}

func (b *NATSBridge) Publish(ctx context.Context, event ports.Event) {
	if b == nil || b.conn == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err == nil {
		err = b.conn.Publish(b.Subject(event.Name), payload)
	}
	if err != nil {
		logCtx := logging.WithAttrs(ctx, slog.String("component", "notify.nats"))
		logging.Warn(logCtx, "publish status event to nats failed", slog.String("event", event.Name), slog.Any("err", errs.Loggable(err)))
	}
}

func (b *NATSBridge) Close() {
	if b == nil || b.conn == nil {
		return
	}
	_ = b.conn.Drain()
}
