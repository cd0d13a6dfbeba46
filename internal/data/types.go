// Package data holds the wire types exchanged with the dispatcher and
// the messaging service, and the in-memory report the scenario runner
// accumulates.
package data

import (
	"encoding/json"
	"fmt"
)

// ClientVariant selects which protocol adapter a scenario runs against.
type ClientVariant int

const (
	ClientVariantUnknown ClientVariant = iota
	ClientVariantPlain
	ClientVariantDeniable
	ClientVariantOther
)

func (v ClientVariant) String() string {
	switch v {
	case ClientVariantPlain:
		return "plain"
	case ClientVariantDeniable:
		return "deniable"
	case ClientVariantOther:
		return "other"
	default:
		return "unknown"
	}
}

func (v ClientVariant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *ClientVariant) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "plain":
		*v = ClientVariantPlain
	case "deniable":
		*v = ClientVariantDeniable
	default:
		*v = ClientVariantOther
	}
	return nil
}

// Friend is one configured peer relationship. Immutable after a scenario
// starts.
type Friend struct {
	Username  string  `json:"username"`
	Frequency float64 `json:"frequency"`
	Deniable  bool    `json:"deniable"`
}

// SizeRange is an inclusive [Min, Max] byte-length range.
type SizeRange struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// ScenarioParams is the scenario description fetched from the dispatcher.
type ScenarioParams struct {
	ClientVariant      ClientVariant     `json:"clientVariant"`
	Username           string            `json:"username"`
	MessageSizeRange   SizeRange         `json:"messageSizeRange"`
	SendRate           uint32            `json:"sendRate"`
	ReplyRate          uint32            `json:"replyRate"`
	TickMillis         uint32            `json:"tickMillis"`
	DurationTicks      uint32            `json:"durationTicks"`
	CovertProbability  float32           `json:"covertProbability"`
	ReplyProbability   float32           `json:"replyProbability"`
	StaleReplyTicks    uint32            `json:"staleReplyTicks"`
	Friends            map[string]Friend `json:"friends"`
}

// Validate checks the invariants spec.md §3 requires before a scenario can
// start.
func (p ScenarioParams) Validate() error {
	if p.ClientVariant == ClientVariantOther || p.ClientVariant == ClientVariantUnknown {
		return fmt.Errorf("unknown client variant")
	}
	if p.MessageSizeRange.Min > p.MessageSizeRange.Max {
		return fmt.Errorf("message size range min %d > max %d", p.MessageSizeRange.Min, p.MessageSizeRange.Max)
	}
	if p.SendRate == 0 {
		return fmt.Errorf("send rate must be > 0")
	}
	if p.ReplyRate == 0 {
		return fmt.Errorf("reply rate must be > 0")
	}
	if p.TickMillis == 0 {
		return fmt.Errorf("tick millis must be > 0")
	}
	if p.DurationTicks == 0 {
		return fmt.Errorf("duration ticks must be > 0")
	}
	return nil
}

// StartInfo is returned by the dispatcher's /sync endpoint once every
// client in the scenario has registered its account id.
type StartInfo struct {
	Friends map[string]string `json:"friends"` // username -> account id
}

// MessageKind distinguishes regular traffic from covert (deniable) traffic.
type MessageKind int

const (
	MessageKindRegular MessageKind = iota
	MessageKindCovert
)

func (k MessageKind) String() string {
	if k == MessageKindCovert {
		return "denim"
	}
	return "regular"
}

func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *MessageKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "denim" {
		*k = MessageKindCovert
	} else {
		*k = MessageKindRegular
	}
	return nil
}

// MessageLog is one totally-ordered entry in the scenario's outcome log.
type MessageLog struct {
	Kind MessageKind `json:"type"`
	From string      `json:"from"`
	To   string      `json:"to"`
	Size uint32      `json:"size"`
	Tick uint32      `json:"tick"`
}

// ClientReport is uploaded to the dispatcher when a scenario ends.
type ClientReport struct {
	StartTimeUnixMillis uint64       `json:"startTime"`
	Messages            []MessageLog `json:"messages"`
}

// IncomingMessage is a reservoir entry: a received message eligible for a
// future reply.
type IncomingMessage struct {
	From string
	Tick uint32
	Kind MessageKind
}
