package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/dohr-michael/skillrouter/internal/events"
)

// Remote is a client connection to a gateway's /api/ws endpoint.
type Remote struct {
	conn   *websocket.Conn
	reqSeq uint64
}

// Dial connects to a gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Remote, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)
	return &Remote{conn: conn}, nil
}

// Close gracefully closes the connection.
func (r *Remote) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (r *Remote) request(ctx context.Context, method Method, params any) (string, error) {
	id := fmt.Sprintf("req-%d", atomic.AddUint64(&r.reqSeq, 1))
	f := Frame{Type: FrameTypeRequest, ID: id, Method: string(method)}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		f.Params = data
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return "", err
	}
	if err := r.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return "", fmt.Errorf("ws write: %w", err)
	}
	return id, nil
}

// ReadFrame reads the next frame from the connection.
func (r *Remote) ReadFrame(ctx context.Context) (Frame, error) {
	_, data, err := r.conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	return UnmarshalFrame(data)
}

// await reads frames until the response to id, passing event frames to
// onEvent.
func (r *Remote) await(ctx context.Context, id string, onEvent func(Frame)) (json.RawMessage, error) {
	for {
		f, err := r.ReadFrame(ctx)
		if err != nil {
			return nil, fmt.Errorf("ws read: %w", err)
		}
		switch f.Type {
		case FrameTypeEvent:
			if onEvent != nil {
				onEvent(f)
			}
		case FrameTypeResponse:
			if f.ID != id {
				continue
			}
			if f.OK == nil || !*f.OK {
				if f.Error == "" {
					f.Error = "request failed"
				}
				return nil, errors.New(f.Error)
			}
			return f.Payload, nil
		}
	}
}

// Ask runs a pipeline on the gateway and returns the raw result payload.
// Events of the run are passed to onEvent as they arrive. The gateway
// broadcasts every run, so the run is recognised by its run.started query.
func (r *Remote) Ask(ctx context.Context, mode, query string, onEvent func(events.Event)) (json.RawMessage, error) {
	id, err := r.request(ctx, MethodAsk, AskParams{Query: query, Mode: mode})
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	var runID string
	return r.await(ctx, id, func(f Frame) {
		var e events.Event
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			return
		}
		if runID == "" && e.Type == events.EventRunStarted {
			if p, ok := events.ExtractPayload[events.RunStartedPayload](e); ok && p.Query == query {
				runID = e.RunID
			}
		}
		if runID != "" && e.RunID == runID && onEvent != nil {
			onEvent(e)
		}
	})
}

// ListSkills returns the gateway's skill list payload.
func (r *Remote) ListSkills(ctx context.Context) (json.RawMessage, error) {
	id, err := r.request(ctx, MethodListSkills, nil)
	if err != nil {
		return nil, err
	}
	return r.await(ctx, id, nil)
}
