package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/makt28/netcanary/internal/config"
)

// Builder constructs a ready-to-use Channel from its configuration.
type Builder interface {
	Build(ctx context.Context, cfg config.ChannelConfig) (Channel, error)
}

// Factory is the default Builder. It reads credentials, connects and
// verifies the transport so a broken channel is reported before its first
// tick.
type Factory struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Clock      clockwork.Clock
}

func NewFactory(log *slog.Logger, client *http.Client, clock clockwork.Clock) *Factory {
	if client == nil {
		client = http.DefaultClient
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Factory{Logger: log, HTTPClient: client, Clock: clock}
}

// Build returns a *SetupError for any failure.
func (f *Factory) Build(ctx context.Context, cfg config.ChannelConfig) (Channel, error) {
	ch, err := f.build(ctx, cfg)
	if err != nil {
		return nil, &SetupError{Channel: cfg.Name, Err: err}
	}
	return ch, nil
}

func (f *Factory) build(ctx context.Context, cfg config.ChannelConfig) (Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var creds config.Credentials
	if cfg.CredentialsFile != "" {
		c, err := config.LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		creds = c
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	log := f.Logger.With("channel", cfg.Name)

	switch cfg.Type {
	case config.TypeEmail:
		e, err := NewEmail(cfg.Name, cfg.Email.Address, cfg.Email.SMTPServer, cfg.Email.Port,
			creds.Username, creds.Password, cfg.Timeout())
		if err != nil {
			return nil, err
		}
		if err := e.Verify(ctx); err != nil {
			return nil, err
		}
		return e, nil
	case config.TypeDiscord:
		return NewDiscord(cfg.Name, creds.Token, cfg.Discord.ChannelID, cfg.Discord.Trigger, log)
	case config.TypeTelegram:
		return NewTelegram(cfg.Name, creds.Token, cfg.Telegram.ChatID, cfg.Telegram.APIURL,
			cfg.Telegram.Trigger, f.HTTPClient, f.Clock, log)
	case config.TypeWebhook:
		return NewWebhook(cfg.Name, cfg.Webhook.URL, cfg.Webhook.Method, creds.Token, f.HTTPClient)
	case config.TypeNATS:
		auth := NATSAuth{Username: creds.Username, Password: creds.Password, Token: creds.Token}
		return NewNATS(cfg.Name, cfg.NATS.URL, cfg.NATS.Subject, auth, cfg.Timeout(), log)
	default:
		return nil, fmt.Errorf("unknown channel type %q", cfg.Type)
	}
}
