package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tacticsboard/choreo/pkg/core"
	"github.com/tacticsboard/choreo/pkg/streaming"
)

var errNoRun = errors.New("no export run in progress")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams export frames to a viewer server. Run boundaries are
// acknowledged; frames are fire-and-forget.
type Backend struct {
	conn  *connection
	cfg   Config
	runID atomic.Uint64
	runs  atomic.Uint64
}

// New creates a WebSocket backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many frames were discarded because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartRun numbers the run locally when it has no ID yet, sends start_run
// and waits for the ack.
func (b *Backend) StartRun(run *core.ExportRun) error {
	if run.ID == 0 {
		run.ID = uint(b.runs.Add(1))
	}
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.NewStartRunPayload(run))
	if err != nil {
		return err
	}
	b.conn.setReplay(data)
	if err := b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout); err != nil {
		b.conn.setReplay(nil)
		return err
	}
	b.runID.Store(uint64(run.ID))
	return nil
}

// RecordFrame queues one frame.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	if b.runID.Load() == 0 {
		return errNoRun
	}
	data, err := marshalEnvelope(streaming.TypeFrame, streaming.NewFramePayload(f))
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndRun sends end_run and waits for the ack. The run is closed even when
// the ack never arrives.
func (b *Backend) EndRun(status core.RunStatus, frames int) error {
	if b.runID.Swap(0) == 0 {
		return errNoRun
	}
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{Status: status, Frames: frames})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)
	b.conn.setReplay(nil)
	return err
}
