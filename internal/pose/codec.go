package pose

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes pose messages for the wire. Name is a local label only: the
// pose channel is pre-negotiated, so its protocol string never reaches the
// other side. Receivers use Decode below, which tells the codecs apart by the
// payload.
type Codec interface {
	Name() string
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// CodecByName resolves a codec name. The empty string selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecNameJSON:
		return JSON{}, nil
	case CodecNameMsgpack:
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("unknown pose codec %q (expected json or msgpack)", name)
	}
}

// Detect picks the codec that produced b. JSON messages are objects and start
// with '{' after optional whitespace; a msgpack message is a map and never
// does.
func Detect(b []byte) Codec {
	if t := bytes.TrimLeft(b, " \t\r\n"); len(t) > 0 && t[0] == '{' {
		return JSON{}
	}
	return Msgpack{}
}

// Decode decodes a message written by either codec.
func Decode(b []byte) (Message, error) {
	return Detect(b).Decode(b)
}

// JSON is the default codec and what browser peers speak.
type JSON struct{}

func (JSON) Name() string { return CodecNameJSON }

func (JSON) Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return sonic.Marshal(m)
}

func (JSON) Decode(b []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Msgpack is a compact binary codec for native peers.
type Msgpack struct{}

func (Msgpack) Name() string { return CodecNameMsgpack }

func (Msgpack) Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&m)
}

func (Msgpack) Decode(b []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
