package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type fakeNATS struct {
	published []*nats.Msg
	flushErr  error
	closed    bool
	drained   bool
}

func (f *fakeNATS) PublishMsg(m *nats.Msg) error {
	f.published = append(f.published, m)
	return nil
}

func (f *fakeNATS) FlushWithContext(ctx context.Context) error { return f.flushErr }

func (f *fakeNATS) Drain() error {
	f.drained = true
	f.closed = true
	return nil
}

func (f *fakeNATS) IsClosed() bool { return f.closed }

func TestNATS_Deliver(t *testing.T) {
	conn := &fakeNATS{}
	n := &NATS{name: "bus", Subject: "canary.edge-1", nc: conn}

	if err := n.Deliver(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if len(conn.published) != 1 {
		t.Fatalf("published %d messages", len(conn.published))
	}
	msg := conn.published[0]
	if msg.Subject != "canary.edge-1" {
		t.Errorf("subject = %s", msg.Subject)
	}
	if _, err := uuid.Parse(msg.Header.Get(nats.MsgIdHdr)); err != nil {
		t.Errorf("Nats-Msg-Id is not a uuid: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["hostname"] != "edge-1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestNATS_FailuresAreTransport(t *testing.T) {
	conn := &fakeNATS{flushErr: errors.New("nats: timeout")}
	n := &NATS{name: "bus", Subject: "canary", nc: conn}
	if got := Classify(n.Deliver(context.Background(), sampleSnapshot())); got != TransportFailure {
		t.Errorf("flush error: Classify() = %v", got)
	}

	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if !conn.drained {
		t.Error("connection not drained")
	}
	if got := Classify(n.Deliver(context.Background(), sampleSnapshot())); got != TransportFailure {
		t.Errorf("closed connection: Classify() = %v", got)
	}
}
