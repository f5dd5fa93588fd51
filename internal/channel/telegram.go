package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/makt28/netcanary/internal/snapshot"
)

// telegramPollTimeout is the long-poll window passed to getUpdates.
const telegramPollTimeout = 25 * time.Second

// telegramRetryDelay is the pause after a failed getUpdates call.
const telegramRetryDelay = 5 * time.Second

// Telegram posts reports via the Telegram Bot API. When Trigger is set it
// also long-polls getUpdates and turns matching messages from ChatID into
// on-demand report requests.
type Telegram struct {
	name     string
	BotToken string
	ChatID   string
	APIURL   string
	Trigger  string

	client *http.Client
	clock  clockwork.Clock
	log    *slog.Logger

	triggers chan Trigger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

// NewTelegram creates a Telegram channel. Polling for triggers starts only
// when trigger is non-empty. clock paces retries of failed polls and
// defaults to the real clock.
func NewTelegram(name, botToken, chatID, apiURL, trigger string, client *http.Client, clock clockwork.Clock, log *slog.Logger) (*Telegram, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	t := &Telegram{
		name:     name,
		BotToken: botToken,
		ChatID:   chatID,
		APIURL:   strings.TrimRight(apiURL, "/"),
		Trigger:  trigger,
		client:   client,
		clock:    clock,
		log:      log,
		triggers: make(chan Trigger, 1),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	if t.Trigger != "" {
		t.wg.Add(1)
		go t.poll(ctx)
	}
	return t, nil
}

func (t *Telegram) Name() string { return t.name }

func (t *Telegram) Kind() string { return "telegram" }

func (t *Telegram) Validate() error {
	if t.BotToken == "" {
		return errors.New("telegram: bot token is required")
	}
	if t.ChatID == "" {
		return errors.New("telegram: chat_id is required")
	}
	return nil
}

func (t *Telegram) Deliver(ctx context.Context, snap snapshot.Snapshot) error {
	return t.sendMessage(ctx, t.ChatID, snapshot.TelegramHTML(snap))
}

func (t *Telegram) Triggers() <-chan Trigger { return t.triggers }

func (t *Telegram) Reply(ctx context.Context, trig Trigger, snap snapshot.Snapshot) error {
	if err := t.sendMessage(ctx, trig.ReplyTo, "Pong!"); err != nil {
		return err
	}
	return t.sendMessage(ctx, trig.ReplyTo, snapshot.TelegramHTML(snap))
}

func (t *Telegram) Close() error {
	t.once.Do(func() {
		t.cancel()
		t.wg.Wait()
		close(t.triggers)
	})
	return nil
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.BotToken, method)
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", redactToken(err, t.BotToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: %w", Reject(resp.StatusCode, telegramDescription(resp.Body)))
	}
	return nil
}

type telegramUpdates struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      []struct {
		UpdateID int64 `json:"update_id"`
		Message  *struct {
			Date int64 `json:"date"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			From *struct {
				Username string `json:"username"`
			} `json:"from"`
			Text string `json:"text"`
		} `json:"message"`
	} `json:"result"`
}

// poll long-polls getUpdates until ctx is cancelled.
func (t *Telegram) poll(ctx context.Context) {
	defer t.wg.Done()
	t.log.Info("telegram trigger listener started", "channel", t.name, "trigger", t.Trigger)

	var offset int64
	for {
		next, err := t.fetchUpdates(ctx, offset)
		if ctx.Err() != nil {
			t.log.Info("telegram trigger listener stopped", "channel", t.name)
			return
		}
		if err != nil {
			t.log.Warn("telegram getUpdates failed", "channel", t.name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-t.clock.After(telegramRetryDelay):
			}
			continue
		}
		offset = next
	}
}

func (t *Telegram) fetchUpdates(ctx context.Context, offset int64) (int64, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(telegramPollTimeout.Seconds())))
	q.Set("allowed_updates", `["message"]`)
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return offset, fmt.Errorf("telegram: create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return offset, fmt.Errorf("telegram: getUpdates: %w", redactToken(err, t.BotToken))
	}
	defer resp.Body.Close()

	var updates telegramUpdates
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&updates); err != nil {
		return offset, fmt.Errorf("telegram: decode updates: %w", err)
	}
	if !updates.OK {
		return offset, fmt.Errorf("telegram: getUpdates: %s", updates.Description)
	}

	for _, u := range updates.Result {
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
		m := u.Message
		if m == nil || strconv.FormatInt(m.Chat.ID, 10) != t.ChatID {
			continue
		}
		if strings.TrimSpace(m.Text) != t.Trigger {
			continue
		}
		trig := Trigger{ReplyTo: t.ChatID, Received: time.Unix(m.Date, 0)}
		if m.From != nil {
			trig.From = m.From.Username
		}
		select {
		case t.triggers <- trig:
		default:
			t.log.Debug("trigger dropped, previous one still pending", "channel", t.name)
		}
	}
	return offset, nil
}

func telegramDescription(r io.Reader) string {
	var body struct {
		Description string `json:"description"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(data, &body); err == nil && body.Description != "" {
		return body.Description
	}
	return strings.TrimSpace(string(data))
}

// redactToken strips the bot token, which is part of every request URL,
// from transport errors before they reach the logs.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
