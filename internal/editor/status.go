package editor

import (
	"slices"
	"time"
)

// Clock abstracts time so message expiry can be tested.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Channel groups status messages; a new message replaces the previous one on
// the same channel.
type Channel string

const (
	ChannelValidation Channel = "validation"
	ChannelIngest     Channel = "ingest"
	ChannelSave       Channel = "save"
	ChannelExport     Channel = "export"
)

var channelOrder = []Channel{ChannelValidation, ChannelIngest, ChannelSave, ChannelExport}

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// How long each kind of message stays visible.
const (
	TTLValidation   = 5 * time.Second
	TTLIngestFailed = 5 * time.Second
	TTLSaveOK       = 2 * time.Second
	TTLSaveFailed   = 3 * time.Second
	TTLExportOK     = 3 * time.Second
	TTLExportFailed = 5 * time.Second
)

// Message is a transient status line.
type Message struct {
	Channel   Channel   `json:"channel"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatusBoard holds at most one message per channel. Expired messages are
// dropped when read, so no timers are needed. It is not safe for concurrent
// use.
type StatusBoard struct {
	clock    Clock
	messages map[Channel]Message
}

func NewStatusBoard(clock Clock) *StatusBoard {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatusBoard{clock: clock, messages: make(map[Channel]Message)}
}

func (b *StatusBoard) Post(ch Channel, level, text string, ttl time.Duration) {
	b.messages[ch] = Message{
		Channel:   ch,
		Level:     level,
		Text:      text,
		ExpiresAt: b.clock.Now().Add(ttl),
	}
}

// Get returns the live message on ch.
func (b *StatusBoard) Get(ch Channel) (Message, bool) {
	b.expire()
	m, ok := b.messages[ch]
	return m, ok
}

// Active returns the live messages in a fixed channel order.
func (b *StatusBoard) Active() []Message {
	b.expire()
	out := make([]Message, 0, len(b.messages))
	for _, ch := range channelOrder {
		if m, ok := b.messages[ch]; ok {
			out = append(out, m)
		}
	}
	return slices.Clip(out)
}

func (b *StatusBoard) expire() {
	now := b.clock.Now()
	for ch, m := range b.messages {
		if !now.Before(m.ExpiresAt) {
			delete(b.messages, ch)
		}
	}
}
