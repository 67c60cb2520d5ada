// Package publish pushes session lifecycle notifications to an MQTT
// broker so pit-wall dashboards can react without polling the API.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher wraps an MQTT client. A nil Publisher is valid and drops
// every message, which is how deployments without a broker run.
type Publisher struct {
	client mqtt.Client
}

// SessionEvent is the payload published when a session finishes
// ingesting.
type SessionEvent struct {
	SessionID   string `json:"session_id"`
	DriverID    string `json:"driver_id"`
	Name        string `json:"name"`
	Format      string `json:"format"`
	SampleCount int    `json:"sample_count"`
	DurationMs  int64  `json:"duration_ms"`
}

var newClientFn = mqtt.NewClient

// Connect dials the broker. An empty broker URL returns a nil
// Publisher without error.
func Connect(broker, clientID string) (*Publisher, error) {
	if broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := newClientFn(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &Publisher{client: client}, nil
}

// SessionReady publishes to laptracker/sessions/{id}.
func (p *Publisher) SessionReady(event SessionEvent) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := "laptracker/sessions/" + event.SessionID
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker, letting in-flight messages drain.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
