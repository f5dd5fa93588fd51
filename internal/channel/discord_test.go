package channel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeSession struct {
	err    error
	sent   []sentMessage
	closed bool
}

func (f *fakeSession) Open() error { return nil }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{channelID, content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func message(authorID, channelID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user-" + authorID},
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}}
}

func TestDiscord_Deliver(t *testing.T) {
	sess := &fakeSession{}
	d := newDiscord("discord", "123", "!ping", sess, discardLogger())

	if err := d.Deliver(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if len(sess.sent) != 1 || sess.sent[0].channelID != "123" {
		t.Fatalf("sent = %+v", sess.sent)
	}
	if !strings.Contains(sess.sent[0].content, "edge-1") {
		t.Errorf("content missing hostname: %q", sess.sent[0].content)
	}
}

func TestDiscord_DeliverRejected(t *testing.T) {
	sess := &fakeSession{err: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: 50001, Message: "Missing Access"},
	}}
	d := newDiscord("discord", "123", "!ping", sess, discardLogger())

	err := d.Deliver(context.Background(), sampleSnapshot())
	if Classify(err) != RejectedByServer {
		t.Fatalf("Classify(%v) = %v, want rejected", err, Classify(err))
	}
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Code != http.StatusForbidden || rejected.Detail != "Missing Access" {
		t.Errorf("unexpected rejection: %+v", rejected)
	}

	sess.err = errors.New("websocket: close 1006")
	if got := Classify(d.Deliver(context.Background(), sampleSnapshot())); got != TransportFailure {
		t.Errorf("Classify() = %v, want transport failure", got)
	}
}

func TestDiscord_HandleMessage(t *testing.T) {
	d := newDiscord("discord", "123", "!ping", &fakeSession{}, discardLogger())

	d.handleMessage("bot", message("bot", "c1", "!ping"))
	d.handleMessage("bot", message("u1", "c1", "hello"))
	select {
	case trig := <-d.Triggers():
		t.Fatalf("unexpected trigger %+v", trig)
	default:
	}

	d.handleMessage("bot", message("u1", "c9", " !ping "))
	select {
	case trig := <-d.Triggers():
		if trig.ReplyTo != "c9" || trig.From != "user-u1" {
			t.Errorf("trigger = %+v", trig)
		}
	default:
		t.Fatal("expected a trigger")
	}
}

func TestDiscord_HandleMessageDropsWhenFull(t *testing.T) {
	d := newDiscord("discord", "123", "!ping", &fakeSession{}, discardLogger())
	d.handleMessage("bot", message("u1", "c1", "!ping"))
	d.handleMessage("bot", message("u2", "c2", "!ping"))

	trig := <-d.Triggers()
	if trig.ReplyTo != "c1" {
		t.Errorf("first trigger = %+v", trig)
	}
	select {
	case extra := <-d.Triggers():
		t.Fatalf("second trigger should have been dropped, got %+v", extra)
	default:
	}
}

func TestDiscord_Reply(t *testing.T) {
	sess := &fakeSession{}
	d := newDiscord("discord", "123", "!ping", sess, discardLogger())

	if err := d.Reply(context.Background(), Trigger{ReplyTo: "c9"}, sampleSnapshot()); err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if len(sess.sent) != 2 || sess.sent[0].content != "Pong!" || sess.sent[1].channelID != "c9" {
		t.Errorf("sent = %+v", sess.sent)
	}
}

func TestDiscord_Close(t *testing.T) {
	sess := &fakeSession{}
	d := newDiscord("discord", "123", "!ping", sess, discardLogger())

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
	if _, ok := <-d.Triggers(); ok {
		t.Error("trigger channel still open")
	}
	// Messages arriving after close must not panic.
	d.handleMessage("bot", message("u1", "c1", "!ping"))
}
