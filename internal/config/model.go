package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel types understood by the channel factory.
const (
	TypeEmail    = "email"
	TypeDiscord  = "discord"
	TypeTelegram = "telegram"
	TypeWebhook  = "webhook"
	TypeNATS     = "nats"
)

// Config is the root structure of canary.yaml.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Hostname  string          `yaml:"hostname"`
	IPLookup  IPLookupConfig  `yaml:"ip_lookup"`
	Status    StatusConfig    `yaml:"status"`
	Channels  []ChannelConfig `yaml:"channels"`
}

type IPLookupConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout bounds one public IP lookup.
func (c IPLookupConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StatusConfig controls the optional local status endpoint.
type StatusConfig struct {
	Listen        string `yaml:"listen"`
	Username      string `yaml:"username"`
	PasswordHash  string `yaml:"password_hash"`
	HistoryPoints int    `yaml:"history_points"`
}

// ChannelConfig configures one notification channel. It is read once at
// startup and owned by that channel's scheduler afterwards.
type ChannelConfig struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Enabled         *bool  `yaml:"enabled,omitempty"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	SendOnStart     bool   `yaml:"send_on_start"`
	CredentialsFile string `yaml:"credentials_file"`

	Email    EmailConfig    `yaml:"email"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	NATS     NATSConfig     `yaml:"nats"`

	// invalid holds a schema or decode error of this entry.
	invalid error
}

// UnmarshalYAML decodes one channel entry. A type mismatch is kept on the
// channel instead of failing the whole document.
func (c *ChannelConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ChannelConfig
	var p plain
	err := node.Decode(&p)
	*c = ChannelConfig(p)
	if err != nil {
		c.invalid = err
	}
	return nil
}

type EmailConfig struct {
	Address    string `yaml:"address"`
	SMTPServer string `yaml:"smtp_server"`
	Port       int    `yaml:"port"`
}

type DiscordConfig struct {
	ChannelID string `yaml:"channel_id"`
	Trigger   string `yaml:"trigger"`
}

// TelegramConfig leaves Trigger empty by default: polling getUpdates
// conflicts with a webhook registered on the same bot.
type TelegramConfig struct {
	ChatID  string `yaml:"chat_id"`
	APIURL  string `yaml:"api_url"`
	Trigger string `yaml:"trigger"`
}

type WebhookConfig struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// IsEnabled returns whether the channel is enabled (defaults to true).
func (c *ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Interval is the fixed delay between two ticks.
func (c *ChannelConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Timeout bounds channel setup and every single delivery.
func (c *ChannelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a config with sensible defaults and no channels.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		IPLookup: IPLookupConfig{
			URL:            "https://api.ipify.org",
			TimeoutSeconds: 10,
		},
		Status: StatusConfig{
			HistoryPoints: 100,
		},
		Channels: []ChannelConfig{},
	}
}

// Default per-channel values.
const (
	DefaultEmailInterval = 5
	DefaultChatInterval  = 60
	DefaultTimeout       = 30
	DefaultSMTPPort      = 465
	DefaultTrigger       = "!ping"
	DefaultTelegramAPI   = "https://api.telegram.org"
)

// ApplyDefaults fills zero-value fields with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.IPLookup.URL == "" {
		c.IPLookup.URL = d.IPLookup.URL
	}
	if c.IPLookup.TimeoutSeconds <= 0 {
		c.IPLookup.TimeoutSeconds = d.IPLookup.TimeoutSeconds
	}
	if c.Status.HistoryPoints <= 0 {
		c.Status.HistoryPoints = d.Status.HistoryPoints
	}
	if c.Channels == nil {
		c.Channels = []ChannelConfig{}
	}
	for i := range c.Channels {
		c.Channels[i].ApplyDefaults()
	}
}

// ApplyDefaults fills zero-value channel fields with the defaults of its type.
func (c *ChannelConfig) ApplyDefaults() {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Name == "" {
		c.Name = c.Type
	}
	if c.IntervalMinutes <= 0 {
		if c.Type == TypeEmail {
			c.IntervalMinutes = DefaultEmailInterval
		} else {
			c.IntervalMinutes = DefaultChatInterval
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeout
	}
	switch c.Type {
	case TypeEmail:
		if c.Email.Port <= 0 {
			c.Email.Port = DefaultSMTPPort
		}
	case TypeDiscord:
		if c.Discord.Trigger == "" {
			c.Discord.Trigger = DefaultTrigger
		}
	case TypeTelegram:
		if c.Telegram.APIURL == "" {
			c.Telegram.APIURL = DefaultTelegramAPI
		}
	case TypeWebhook:
		if c.Webhook.Method == "" {
			c.Webhook.Method = "POST"
		}
	}
}

// Validate checks process-wide settings. Channel problems are reported by
// ChannelConfig.Validate so one broken channel does not stop the others.
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be one of: debug, info, warn, error (got %q)", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Sprintf("log_format must be json or text (got %q)", c.LogFormat))
	}
	if u, err := url.Parse(c.IPLookup.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "ip_lookup.url must be a valid http(s) URL")
	}
	if (c.Status.Username == "") != (c.Status.PasswordHash == "") {
		errs = append(errs, "status.username and status.password_hash must be set together")
	}

	seen := make(map[string]bool)
	for i, ch := range c.Channels {
		if seen[ch.Name] {
			errs = append(errs, fmt.Sprintf("channels[%d].name is duplicate: %s", i, ch.Name))
		}
		seen[ch.Name] = true
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// Validate checks one channel's settings.
func (c *ChannelConfig) Validate() error {
	if c.invalid != nil {
		return fmt.Errorf("channel %q: %w", c.Name, c.invalid)
	}

	var errs []string

	if c.IntervalMinutes < 1 {
		errs = append(errs, "interval_minutes must be >= 1")
	}
	if c.TimeoutSeconds < 1 {
		errs = append(errs, "timeout_seconds must be >= 1")
	}

	needCredentials := true
	switch c.Type {
	case TypeEmail:
		if c.Email.Address == "" {
			errs = append(errs, "email.address is required")
		} else if !strings.Contains(c.Email.Address, "@") {
			errs = append(errs, fmt.Sprintf("email.address %q is not a mailbox", c.Email.Address))
		}
		if c.Email.SMTPServer == "" {
			errs = append(errs, "email.smtp_server is required")
		}
		if c.Email.Port < 1 || c.Email.Port > 65535 {
			errs = append(errs, "email.port must be within 1-65535")
		}
	case TypeDiscord:
		if c.Discord.ChannelID == "" {
			errs = append(errs, "discord.channel_id is required")
		}
	case TypeTelegram:
		if c.Telegram.ChatID == "" {
			errs = append(errs, "telegram.chat_id is required")
		}
	case TypeWebhook:
		needCredentials = false
		if u, err := url.Parse(c.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, "webhook.url must be a valid http(s) URL")
		}
	case TypeNATS:
		needCredentials = false
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required")
		}
		if c.NATS.Subject == "" {
			errs = append(errs, "nats.subject is required")
		}
	default:
		needCredentials = false
		errs = append(errs, fmt.Sprintf("type must be email, discord, telegram, webhook, or nats (got %q)", c.Type))
	}

	if needCredentials && c.CredentialsFile == "" {
		errs = append(errs, "credentials_file is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("channel %q: %s", c.Name, strings.Join(errs, "; "))
	}
	return nil
}
