package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Event string

const (
	EventJobUpdated         Event = "JobUpdated"
	EventJobProgress        Event = "JobProgress"
	EventSessionUpdated     Event = "SessionUpdated"
	EventSessionFrame       Event = "SessionFrame"
	EventBalanceUpdated     Event = "BalanceUpdated"
	EventPostUpdated        Event = "PostUpdated"
	EventPostDeleted        Event = "PostDeleted"
	EventInteractionChanged Event = "InteractionChanged"
)

// Message is one realtime notification. Data stays raw so it survives the
// bus round trip untouched.
type Message struct {
	Channel string          `json:"channel"`
	Event   Event           `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewMessage(channel string, event Event, data any) (Message, error) {
	msg := Message{Channel: channel, Event: event}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg.Data = raw
	return msg, nil
}

func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Event)
	}
	return json.Unmarshal(m.Data, v)
}

type ChannelKind string

const (
	ChannelJob     ChannelKind = "job"
	ChannelSession ChannelKind = "session"
	ChannelUser    ChannelKind = "user"
)

func JobChannel(id uuid.UUID) string     { return string(ChannelJob) + ":" + id.String() }
func SessionChannel(id uuid.UUID) string { return string(ChannelSession) + ":" + id.String() }
func UserChannel(id uuid.UUID) string    { return string(ChannelUser) + ":" + id.String() }

// ParseChannel splits "kind:id" and validates both halves.
func ParseChannel(channel string) (ChannelKind, uuid.UUID, error) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(channel), ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("invalid channel %q", channel)
	}
	switch ChannelKind(kind) {
	case ChannelJob, ChannelSession, ChannelUser:
	default:
		return "", uuid.Nil, fmt.Errorf("unknown channel kind %q", kind)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid channel id %q: %w", rawID, err)
	}
	return ChannelKind(kind), id, nil
}
