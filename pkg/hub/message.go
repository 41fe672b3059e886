// Package hub fans dashboard feeds (session stats, violation events, camera
// frames) out to websocket subscribers. Each hub keeps a short replay of
// recent payloads so a subscriber that connects mid-session catches up
// before it sees live traffic. Subscribers that fall behind are dropped.
package hub

import "encoding/json"

// Kind selects the websocket frame type a payload is written as
type Kind uint8

const (
	KindJSON Kind = iota // Text frame
	KindJPEG             // Binary frame
)

// Payload is one feed item. Seq is assigned by the hub, starting at 1.
type Payload struct {
	Kind Kind
	Seq  uint64
	Data []byte
}

// JSON encodes v as a text payload
func JSON(v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Kind: KindJSON, Data: data}, nil
}

// JPEG wraps an encoded frame
func JPEG(data []byte) Payload {
	return Payload{Kind: KindJPEG, Data: data}
}
