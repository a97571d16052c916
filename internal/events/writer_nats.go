package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NatsWriter publishes each event as JSON on "<topic>.<type>".
type NatsWriter struct {
	nc *nats.Conn
}

func NewNatsWriter(url string) (*NatsWriter, error) {
	nc, err := nats.Connect(url,
		nats.Name("workflow-tracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.S().Named("nats_writer").Warnw("disconnected from nats", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			zap.S().Named("nats_writer").Infof("reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}
	return &NatsWriter{nc: nc}, nil
}

func (n *NatsWriter) Write(ctx context.Context, topic string, e Event) error {
	payload, err := json.Marshal(struct {
		ID     string          `json:"id"`
		Source string          `json:"source"`
		Type   string          `json:"type"`
		Time   time.Time       `json:"time"`
		Data   json.RawMessage `json:"data"`
	}{e.ID, e.Source, e.Type, e.Time, json.RawMessage(e.Data)})
	if err != nil {
		return err
	}
	return n.nc.Publish(topic+"."+e.Type, payload)
}

// Close flushes pending publishes and drains the connection.
func (n *NatsWriter) Close(ctx context.Context) error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		zap.S().Named("nats_writer").Warnw("failed to flush nats connection", "error", err)
	}
	return n.nc.Drain()
}
