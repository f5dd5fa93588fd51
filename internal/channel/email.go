package channel

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/makt28/netcanary/internal/snapshot"
)

// mailSender is the subset of *mail.Client used by Email.
type mailSender interface {
	DialWithContext(ctx context.Context) error
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	Close() error
}

// Email sends an HTML report from and to one mailbox over SMTP.
type Email struct {
	name    string
	Address string
	client  mailSender
}

// NewEmail configures an SMTP client for server:port. Port 465 uses
// implicit TLS; any other port must offer STARTTLS.
func NewEmail(name, address, server string, port int, username, password string, timeout time.Duration) (*Email, error) {
	if address == "" {
		return nil, errors.New("email: address is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("email: username and password are required")
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTimeout(timeout),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(server, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: create client: %w", err)
	}
	return &Email{name: name, Address: address, client: client}, nil
}

func (e *Email) Name() string { return e.name }

func (e *Email) Kind() string { return "email" }

// Verify opens and closes one authenticated SMTP session.
func (e *Email) Verify(ctx context.Context) error {
	if err := e.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("email: connect: %w", err)
	}
	return e.client.Close()
}

func (e *Email) Deliver(ctx context.Context, snap snapshot.Snapshot) error {
	msg, err := e.message(snap)
	if err != nil {
		return err
	}
	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		return classifyMailError(err)
	}
	return nil
}

func (e *Email) message(snap snapshot.Snapshot) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.Address); err != nil {
		return nil, fmt.Errorf("email: set from: %w", err)
	}
	if err := msg.ReplyTo(e.Address); err != nil {
		return nil, fmt.Errorf("email: set reply-to: %w", err)
	}
	if err := msg.To(e.Address); err != nil {
		return nil, fmt.Errorf("email: set to: %w", err)
	}
	msg.Subject(snapshot.Subject(snap))
	msg.SetBodyString(mail.TypeTextHTML, snapshot.HTML(snap))
	return msg, nil
}

// Close is a no-op: every delivery dials its own session.
func (e *Email) Close() error { return nil }

// classifyMailError marks errors the SMTP server answered with as rejections.
func classifyMailError(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		switch sendErr.Reason {
		case mail.ErrSMTPMailFrom, mail.ErrSMTPRcptTo, mail.ErrSMTPData, mail.ErrSMTPDataClose:
			return fmt.Errorf("email: %w", Reject(0, sendErr.Error()))
		}
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return fmt.Errorf("email: %w", Reject(protoErr.Code, protoErr.Msg))
	}
	return fmt.Errorf("email: send: %w", err)
}
