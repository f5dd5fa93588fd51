package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/makt28/netcanary/internal/snapshot"
)

// discordSession is the subset of *discordgo.Session used by Discord.
type discordSession interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts reports to a channel through a bot account and answers the
// trigger command in any channel the bot can read.
type Discord struct {
	name      string
	ChannelID string
	Trigger   string

	session discordSession
	log     *slog.Logger

	mu       sync.Mutex
	closed   bool
	triggers chan Trigger
}

// NewDiscord opens a gateway session for the bot token.
func NewDiscord(name, token, channelID, trigger string, log *slog.Logger) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord: token is required")
	}
	if channelID == "" {
		return nil, errors.New("discord: channel_id is required")
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	d := newDiscord(name, channelID, trigger, s, log)
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		d.handleMessage(selfID, m)
	})

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord: open gateway: %w", err)
	}
	log.Info("discord gateway connected", "channel", name, "trigger", trigger)
	return d, nil
}

func newDiscord(name, channelID, trigger string, session discordSession, log *slog.Logger) *Discord {
	return &Discord{
		name:      name,
		ChannelID: channelID,
		Trigger:   trigger,
		session:   session,
		log:       log,
		triggers:  make(chan Trigger, 1),
	}
}

func (d *Discord) Name() string { return d.name }

func (d *Discord) Kind() string { return "discord" }

func (d *Discord) Deliver(ctx context.Context, snap snapshot.Snapshot) error {
	return d.send(ctx, d.ChannelID, snapshot.Markdown(snap))
}

func (d *Discord) Triggers() <-chan Trigger { return d.triggers }

func (d *Discord) Reply(ctx context.Context, trig Trigger, snap snapshot.Snapshot) error {
	if err := d.send(ctx, trig.ReplyTo, "Pong!"); err != nil {
		return err
	}
	return d.send(ctx, trig.ReplyTo, snapshot.Markdown(snap))
}

func (d *Discord) send(ctx context.Context, channelID, content string) error {
	_, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		code := 0
		if restErr.Response != nil {
			code = restErr.Response.StatusCode
		}
		detail := strings.TrimSpace(string(restErr.ResponseBody))
		if restErr.Message != nil && restErr.Message.Message != "" {
			detail = restErr.Message.Message
		}
		return fmt.Errorf("discord: %w", Reject(code, detail))
	}
	return fmt.Errorf("discord: send message: %w", err)
}

// handleMessage queues a trigger for messages that equal the trigger
// command. Messages from the bot itself are ignored.
func (d *Discord) handleMessage(selfID string, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if m.Author.ID == selfID || strings.TrimSpace(m.Content) != d.Trigger {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.triggers <- Trigger{ReplyTo: m.ChannelID, From: m.Author.Username, Received: m.Timestamp}:
	default:
		d.log.Debug("trigger dropped, previous one still pending", "channel", d.name)
	}
}

func (d *Discord) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.triggers)
	d.mu.Unlock()

	if err := d.session.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}
