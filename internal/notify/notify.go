// Package notify announces finished build passes to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "pagepress.builds"

const (
	connectTimeout = 5 * time.Second
	flushTimeout   = 5 * time.Second
)

// BuildNotification is the JSON message published after each pass.
type BuildNotification struct {
	BuildID  string    `json:"build_id"`
	Outcome  string    `json:"outcome"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Scanned  int       `json:"scanned"`
	Pages    int       `json:"pages"`
	Rendered int       `json:"rendered"`
	Failed   int       `json:"failed"`
	Assets   int       `json:"assets"`
	Revision string    `json:"revision,omitempty"`
	Failures []string  `json:"failures,omitempty"`
}

// Publisher delivers build notifications.
type Publisher interface {
	Publish(ctx context.Context, n BuildNotification) error
	Close() error
}

// NoopPublisher drops every notification.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildNotification) error { return nil }
func (NoopPublisher) Close() error                                     { return nil }

// NATSPublisher publishes notifications on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url. An empty subject uses DefaultSubject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("pagepress"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, errors.StoreError("failed to connect to NATS").
			WithCause(err).WithContext("url", url).Build()
	}

	slog.Info("NATS build notifications enabled",
		logfields.URL(url),
		slog.String("subject", subject))

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends n and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, n BuildNotification) error {
	data, err := Encode(n)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.StoreError("failed to publish build notification").
			WithCause(err).WithContext("build_id", n.BuildID).Build()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.StoreError("failed to flush build notification").
			WithCause(err).WithContext("build_id", n.BuildID).Build()
	}

	slog.Debug("Published build notification",
		logfields.BuildID(n.BuildID),
		slog.String("subject", p.subject),
		slog.String("outcome", n.Outcome))
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// Encode renders n as the published JSON message.
func Encode(n BuildNotification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, errors.StoreError("failed to marshal build notification").
			WithCause(err).WithContext("build_id", n.BuildID).Build()
	}
	return data, nil
}
