// Package api is the wire contract of the account service: request and
// response messages, the gRPC service descriptor, and a typed client.
// Messages travel as JSON through a gRPC codec.
//
// The messages, ServiceDesc and client here stand in for protoc output.
// Once an accounts.proto exists, generate the stubs into this package,
// drop Codec and the ForceCodec/ForceServerCodec options, and the default
// protobuf codec takes over; method names already follow ServiceName.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype, so requests are sent as
// "application/grpc+json".
const CodecName = "json"

// Codec marshals messages as JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal: %w", err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec unmarshal: %w", err)
	}
	return nil
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
