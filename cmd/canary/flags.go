package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/config"
)

var (
	configPath   string
	logLevel     string
	logFormat    string
	statusListen string
	hostname     string
	ipLookupURL  string
)

// channelFlags mirror the command line surface of the classic single-channel
// canary. Each flag falls back to its environment variable.
type channelFlags struct {
	EmailAddress    string
	SMTPServer      string
	SMTPPort        int
	Credentials     string
	Interval        int
	NoEmail         bool
	DiscordChannel  string
	DiscordCreds    string
	DiscordInterval int
}

var flagChannelsOpts channelFlags

func registerGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "canary.yaml", "Path to configuration YAML")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: json or text (overrides config)")
	pf.StringVar(&statusListen, "status-listen", "", "Address of the local status endpoint, e.g. 127.0.0.1:9115 (overrides config)")
	pf.StringVar(&hostname, "hostname", "", "Hostname shown in reports (default: the OS hostname)")
	pf.StringVar(&ipLookupURL, "ip-url", "", "URL answering with the public IP address as plain text (overrides config)")
}

func registerChannelFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	o := &flagChannelsOpts
	pf.StringVar(&o.EmailAddress, "email-address", os.Getenv("INTERNET_CANARY_EMAIL"),
		"Canary emails are sent from and to this mailbox [env INTERNET_CANARY_EMAIL]")
	pf.StringVar(&o.SMTPServer, "smtp-server", os.Getenv("INTERNET_CANARY_SMTP_SERVER"),
		"Hostname of the SMTP server [env INTERNET_CANARY_SMTP_SERVER]")
	pf.IntVar(&o.SMTPPort, "smtp-port", config.DefaultSMTPPort, "SMTP port; 465 uses implicit TLS, others STARTTLS")
	pf.StringVar(&o.Credentials, "credentials", envOr("INTERNET_CANARY_CREDENTIALS_FILE", "credentials.json"),
		"JSON file with SMTP username and password [env INTERNET_CANARY_CREDENTIALS_FILE]")
	pf.IntVarP(&o.Interval, "interval", "i", config.DefaultEmailInterval,
		"Minutes to wait between consecutive email reports")
	pf.BoolVar(&o.NoEmail, "no-email", false, "Do not start the email channel from flags")
	pf.StringVar(&o.DiscordChannel, "discord-channel", os.Getenv("INTERNET_CANARY_DISCORD_CHANNEL"),
		"Discord channel ID for reports [env INTERNET_CANARY_DISCORD_CHANNEL]")
	pf.StringVar(&o.DiscordCreds, "discord-credentials", envOr("INTERNET_CANARY_DISCORD_CREDENTIALS_FILE", "discord.json"),
		"JSON file with the Discord bot token [env INTERNET_CANARY_DISCORD_CREDENTIALS_FILE]")
	pf.IntVar(&o.DiscordInterval, "discord-interval", config.DefaultChatInterval,
		"Minutes to wait between consecutive Discord reports")
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// toChannels turns the flag surface into channel configs. A channel is
// only produced when its destination flags are all present.
func (o channelFlags) toChannels() ([]config.ChannelConfig, []string, error) {
	var (
		channels []config.ChannelConfig
		skipped  []string
	)

	if !o.NoEmail {
		switch {
		case o.EmailAddress != "" && o.SMTPServer != "":
			if o.Interval < 1 {
				return nil, nil, fmt.Errorf("--interval must be at least 1 minute (got %d)", o.Interval)
			}
			channels = append(channels, config.ChannelConfig{
				Name:            "email",
				Type:            config.TypeEmail,
				IntervalMinutes: o.Interval,
				CredentialsFile: o.Credentials,
				Email: config.EmailConfig{
					Address:    o.EmailAddress,
					SMTPServer: o.SMTPServer,
					Port:       o.SMTPPort,
				},
			})
		case o.EmailAddress != "" || o.SMTPServer != "":
			skipped = append(skipped, "email channel needs both --email-address and --smtp-server")
		}
	}

	if o.DiscordChannel != "" {
		if o.DiscordInterval < 1 {
			return nil, nil, fmt.Errorf("--discord-interval must be at least 1 minute (got %d)", o.DiscordInterval)
		}
		channels = append(channels, config.ChannelConfig{
			Name:            "discord",
			Type:            config.TypeDiscord,
			IntervalMinutes: o.DiscordInterval,
			CredentialsFile: o.DiscordCreds,
			Discord:         config.DiscordConfig{ChannelID: o.DiscordChannel},
		})
	}

	for i := range channels {
		channels[i].ApplyDefaults()
	}
	return channels, skipped, nil
}
