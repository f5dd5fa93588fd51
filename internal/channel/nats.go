package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/makt28/netcanary/internal/snapshot"
)

type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	IsClosed() bool
}

// NATS publishes the JSON snapshot on a subject. Each message carries a
// Nats-Msg-Id header so JetStream consumers can deduplicate.
type NATS struct {
	name    string
	Subject string
	nc      natsConn
}

// NATSAuth holds optional connection credentials.
type NATSAuth struct {
	Username string
	Password string
	Token    string
}

func NewNATS(name, url, subject string, auth NATSAuth, timeout time.Duration, log *slog.Logger) (*NATS, error) {
	if subject == "" {
		return nil, errors.New("nats: subject is required")
	}

	opts := []nats.Option{
		nats.Name("netcanary-" + name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "channel", name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "channel", name, "url", nc.ConnectedUrl())
		}),
	}
	switch {
	case auth.Token != "":
		opts = append(opts, nats.Token(auth.Token))
	case auth.Username != "":
		opts = append(opts, nats.UserInfo(auth.Username, auth.Password))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &NATS{name: name, Subject: subject, nc: nc}, nil
}

func (n *NATS) Name() string { return n.name }

func (n *NATS) Kind() string { return "nats" }

func (n *NATS) Deliver(ctx context.Context, snap snapshot.Snapshot) error {
	if n.nc.IsClosed() {
		return errors.New("nats: connection closed")
	}
	data, err := snapshot.JSON(snap)
	if err != nil {
		return fmt.Errorf("nats: marshal payload: %w", err)
	}

	msg := nats.NewMsg(n.Subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set("Content-Type", "application/json")

	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	// Core NATS publishes are fire-and-forget; the flush round trip is what
	// tells us the server has the message.
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	return nil
}

func (n *NATS) Close() error {
	if n.nc.IsClosed() {
		return nil
	}
	return n.nc.Drain()
}
