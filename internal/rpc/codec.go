package rpc

import (
	"encoding/json"
	"errors"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a grpc encoding.Codec so NodeClient can
// ride the real gRPC transport (framing, keepalive, TLS, status codes)
// without a protoc toolchain to regenerate protobuf bindings for the
// node-service messages. See DESIGN.md for why this substitution was
// made instead of hand-writing protobuf wire encoding.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// A field of the wrong type is skipped; the rest of the message
		// has still been decoded.
		return nil
	}
	return err
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
