package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const streamPath = "/v1/stream/query"

// EventStream yields batches from one open stream connection.
type EventStream interface {
	// Next blocks until the next batch arrives or the stream fails.
	Next() (Batch, error)
	Close() error
}

type streamQuery struct {
	TemplateIDs []string `json:"templateIds"`
}

type streamOffset struct {
	Offset string `json:"offset"`
}

// Stream opens the event stream for templateIDs.
//
// With an empty offset the ledger first replays the active contracts and then
// sends a message carrying an offset; from there on the stream is live. With
// a non-empty offset the stream resumes after it and skips the replay.
// Cancelling ctx closes the connection.
func (c *Client) Stream(ctx context.Context, templateIDs []string, offset string) (EventStream, error) {
	if len(templateIDs) == 0 {
		return nil, fmt.Errorf("at least one template id is required")
	}

	dialer := *c.dialer
	if c.token != "" {
		dialer.Subprotocols = []string{"jwt.token." + c.token, "daml.ws.auth"}
	}
	conn, resp, err := dialer.DialContext(ctx, c.streamURL(), http.Header{})
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Errors: []string{err.Error()}}
		}
		return nil, fmt.Errorf("dial event stream: %w", err)
	}

	if offset = strings.TrimSpace(offset); offset != "" {
		if err := conn.WriteJSON(streamOffset{Offset: offset}); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("send stream offset: %w", err)
		}
	}
	if err := conn.WriteJSON([]streamQuery{{TemplateIDs: templateIDs}}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send stream query: %w", err)
	}

	stream := &wsStream{conn: conn, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.done:
		}
	}()
	return stream, nil
}

func (c *Client) streamURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + streamPath
	return u.String()
}

type wsStream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

func (s *wsStream) Next() (Batch, error) {
	var fields map[string]json.RawMessage
	if err := s.conn.ReadJSON(&fields); err != nil {
		return Batch{}, fmt.Errorf("read event stream: %w", err)
	}
	return decodeBatch(fields)
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// decodeBatch reads one stream message. The offset key is checked for
// presence rather than value: an empty ledger answers the replay with
// "offset": null, which still marks the stream live.
func decodeBatch(fields map[string]json.RawMessage) (Batch, error) {
	if raw, ok := fields["errors"]; ok {
		var messages []string
		if err := json.Unmarshal(raw, &messages); err != nil {
			return Batch{}, fmt.Errorf("decode stream errors: %w", err)
		}
		if len(messages) > 0 {
			status := http.StatusInternalServerError
			if rawStatus, ok := fields["status"]; ok {
				_ = json.Unmarshal(rawStatus, &status)
			}
			return Batch{}, &APIError{Status: status, Errors: messages}
		}
	}

	var batch Batch
	if raw, ok := fields["events"]; ok {
		if err := json.Unmarshal(raw, &batch.Events); err != nil {
			return Batch{}, fmt.Errorf("decode stream events: %w", err)
		}
	}
	if raw, ok := fields["offset"]; ok {
		batch.Live = true
		var offset string
		if err := json.Unmarshal(raw, &offset); err == nil {
			batch.Offset = offset
		}
	}
	return batch, nil
}
