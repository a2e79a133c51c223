// Package api defines the settleup.v1 RPC surface: message types, service
// interfaces, and Connect handler and client constructors.
//
// Messages are plain Go structs carried as JSON. The handlers speak the
// Connect, gRPC-Web and gRPC protocols like any Connect handler; only the
// JSON codec is registered for them.
package api

import (
	"encoding/json"

	"connectrpc.com/connect"
)

const (
	codecNameJSON            = "json"
	codecNameJSONCharsetUTF8 = "json; charset=utf-8"
)

// jsonCodec marshals plain structs with encoding/json.
type jsonCodec struct {
	name string
}

func (c jsonCodec) Name() string { return c.name }

func (c jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (c jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// handlerOptions prepends the JSON codecs to caller-supplied options.
func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{name: codecNameJSON}),
		connect.WithCodec(jsonCodec{name: codecNameJSONCharsetUTF8}),
	}, opts...)
}

// clientOptions prepends the JSON codec to caller-supplied options.
func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{name: codecNameJSON}),
	}, opts...)
}
