package cache

import (
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns cached values into bytes and back
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// JSON is the default codec
type JSON struct{}

func (JSON) Name() string                    { return "json" }
func (JSON) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Msgpack is the compact codec; struct fields follow `msgpack` tags
type Msgpack struct{}

func (Msgpack) Name() string                    { return "msgpack" }
func (Msgpack) Marshal(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }

// CodecFor resolves a codec by name; anything unknown is JSON
func CodecFor(name string) Codec {
	if strings.EqualFold(strings.TrimSpace(name), "msgpack") {
		return Msgpack{}
	}
	return JSON{}
}
