package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindHello      Kind = "hello"      // sent by us after every (re)connect
	KindJoin       Kind = "join"       // someone joined the call
	KindTranscript Kind = "transcript" // speech already turned into text
	KindAudio      Kind = "audio"      // encoded speech clip
	KindFrame      Kind = "frame"      // JPEG snapshot from the caller's camera
	KindReply      Kind = "reply"      // our answer, to be spoken on the call
)

// Broadcast addresses every peer on the bus.
const Broadcast = "ALL"

// Message is one JSON text frame on the bus. Data is base64 in JSON.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Data    []byte `json:"data,omitempty"`
	Mime    string `json:"mime,omitempty"`
}

func (m Message) For(name string) bool {
	return m.To == "" || m.To == Broadcast || m.To == name
}

func Parse(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	if m.Kind == "" {
		return Message{}, errors.New("parse message: missing kind")
	}
	return m, nil
}
