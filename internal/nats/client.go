package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const RunOutcomeSubject = "bansu.runs.outcome"

type Client struct {
	conn *nats.Conn
}

func NewClient(url string) (*Client, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.Name("bansu-harness"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn}, nil
}

// PublishOutcome publishes a run outcome and flushes, so the message is
// on the wire before the process exits.
func (c *Client) PublishOutcome(msg *RunOutcomeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal run outcome message: %w", err)
	}

	if err := c.conn.Publish(RunOutcomeSubject, data); err != nil {
		return fmt.Errorf("failed to publish run outcome: %w", err)
	}

	if err := c.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush run outcome: %w", err)
	}

	return nil
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
