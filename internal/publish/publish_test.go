package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client

	connectToken *fakeToken
	publishToken *fakeToken

	topic        string
	payload      []byte
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return c.publishToken
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func withFakeClient(t *testing.T, client *fakeClient) {
	t.Helper()
	old := newClientFn
	newClientFn = func(*mqtt.ClientOptions) mqtt.Client { return client }
	t.Cleanup(func() { newClientFn = old })
}

func TestConnectDisabledWithoutBroker(t *testing.T) {
	pub, err := Connect("", "client-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if pub != nil {
		t.Fatalf("expected nil publisher")
	}

	// nil publisher drops silently
	if err := pub.SessionReady(SessionEvent{SessionID: "s-1"}); err != nil {
		t.Fatalf("nil publish: %v", err)
	}
	pub.Close()
}

func TestSessionReadyPublishes(t *testing.T) {
	client := &fakeClient{
		connectToken: &fakeToken{},
		publishToken: &fakeToken{},
	}
	withFakeClient(t, client)

	pub, err := Connect("tcp://broker:1883", "client-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	event := SessionEvent{
		SessionID:   "session-9",
		DriverID:    "driver-1",
		Name:        "practice 2",
		Format:      "vbo",
		SampleCount: 1200,
		DurationMs:  119900,
	}
	if err := pub.SessionReady(event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if client.topic != "laptracker/sessions/session-9" {
		t.Fatalf("unexpected topic: %s", client.topic)
	}

	var decoded SessionEvent
	if err := json.Unmarshal(client.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded != event {
		t.Fatalf("payload mismatch: %+v", decoded)
	}

	pub.Close()
	if !client.disconnected {
		t.Fatalf("expected disconnect")
	}
}

func TestConnectErrors(t *testing.T) {
	client := &fakeClient{connectToken: &fakeToken{timeout: true}}
	withFakeClient(t, client)
	if _, err := Connect("tcp://broker:1883", "client-1"); err == nil {
		t.Fatalf("expected connect timeout")
	}

	client = &fakeClient{connectToken: &fakeToken{err: errors.New("refused")}}
	withFakeClient(t, client)
	if _, err := Connect("tcp://broker:1883", "client-1"); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestSessionReadyPublishError(t *testing.T) {
	client := &fakeClient{
		connectToken: &fakeToken{},
		publishToken: &fakeToken{err: errors.New("broker gone")},
	}
	withFakeClient(t, client)

	pub, err := Connect("tcp://broker:1883", "client-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := pub.SessionReady(SessionEvent{SessionID: "s-1"}); err == nil {
		t.Fatalf("expected publish error")
	}

	client.publishToken = &fakeToken{timeout: true}
	if err := pub.SessionReady(SessionEvent{SessionID: "s-1"}); err == nil {
		t.Fatalf("expected publish timeout")
	}
}
