package channel

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
)

type fakeMailer struct {
	dialErr error
	sendErr error
	sent    []*mail.Msg
	closed  int
}

func (f *fakeMailer) DialWithContext(ctx context.Context) error { return f.dialErr }

func (f *fakeMailer) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func (f *fakeMailer) Close() error {
	f.closed++
	return nil
}

func TestEmail_Deliver(t *testing.T) {
	fake := &fakeMailer{}
	e := &Email{name: "email", Address: "canary@example.com", client: fake}

	if err := e.Deliver(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}
	msg := fake.sent[0]

	rcpts, err := msg.GetRecipients()
	if err != nil {
		t.Fatal(err)
	}
	if len(rcpts) != 1 || rcpts[0] != "canary@example.com" {
		t.Errorf("recipients = %v", rcpts)
	}
	subject := msg.GetGenHeader(mail.HeaderSubject)
	if len(subject) != 1 || !strings.Contains(subject[0], "edge-1") {
		t.Errorf("subject = %v", subject)
	}
}

func TestEmail_DeliverOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"recipient refused", &mail.SendError{Reason: mail.ErrSMTPRcptTo}, RejectedByServer},
		{"data refused", &mail.SendError{Reason: mail.ErrSMTPData}, RejectedByServer},
		{"smtp reply", &textproto.Error{Code: 535, Msg: "authentication failed"}, RejectedByServer},
		{"connection refused", errors.New("dial tcp 192.0.2.1:465: connect: connection refused"), TransportFailure},
		{"connection check", &mail.SendError{Reason: mail.ErrConnCheck}, TransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Email{name: "email", Address: "canary@example.com", client: &fakeMailer{sendErr: tt.err}}
			err := e.Deliver(context.Background(), sampleSnapshot())
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", err, got, tt.want)
			}
		})
	}
}

func TestEmail_Verify(t *testing.T) {
	fake := &fakeMailer{}
	e := &Email{name: "email", Address: "canary@example.com", client: fake}
	if err := e.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if fake.closed != 1 {
		t.Errorf("Close called %d times, want 1", fake.closed)
	}

	fake.dialErr = errors.New("no route to host")
	if err := e.Verify(context.Background()); err == nil {
		t.Fatal("expected Verify to fail")
	}
}

func TestNewEmail_RequiresCredentials(t *testing.T) {
	if _, err := NewEmail("email", "a@example.com", "smtp.example.com", 465, "", "", time.Second); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	e, err := NewEmail("email", "a@example.com", "smtp.example.com", 587, "user", "secret", time.Second)
	if err != nil {
		t.Fatalf("NewEmail() error: %v", err)
	}
	if e.Kind() != "email" || e.Name() != "email" {
		t.Errorf("unexpected identity %s/%s", e.Kind(), e.Name())
	}
}
