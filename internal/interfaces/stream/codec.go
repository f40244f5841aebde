package stream

import (
	"bytes"
	"encoding/base64"
	"fmt"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
)

// Frame types recognized by watching clients.
const (
	FrameMatchUpdate     = "matchUpdate"
	FrameMatchListUpdate = "matchListUpdate"
)

// Envelope is the tagged payload carried inside one event-stream frame.
type Envelope struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
	Data    any    `json:"data"`
}

// The heartbeat carries an opaque placeholder instead of JSON so clients can
// cheaply discard it without decoding.
var heartbeatFrame = []byte("data: ping\n\n")

func HeartbeatFrame() []byte {
	return heartbeatFrame
}

// EncodeFrame renders one frame as `data: <base64 of JSON envelope>\n\n`.
// Base64 keeps the payload a single line regardless of what JSON contains.
func EncodeFrame(env Envelope) ([]byte, error) {
	payload, err := sonic.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("data: ")
	buf.WriteString(base64.StdEncoding.EncodeToString(payload))
	buf.WriteString("\n\n")

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeFrame parses a frame produced by EncodeFrame. The envelope's Data is
// left as raw JSON for the caller to bind.
func DecodeFrame(frame []byte) (Envelope, error) {
	trimmed := bytes.TrimSuffix(frame, []byte("\n\n"))
	body, ok := bytes.CutPrefix(trimmed, []byte("data: "))
	if !ok {
		return Envelope{}, fmt.Errorf("frame is missing the data prefix")
	}

	payload, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return Envelope{}, fmt.Errorf("decode frame body: %w", err)
	}

	var env Envelope
	if err := sonic.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
