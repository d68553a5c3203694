// Package rpc contains the wire bindings for the buildli gRPC API.
//
// The service is defined directly in Go with a JSON codec instead of
// generated protobuf code. Clients select the codec per call via
// grpc.CallContentSubtype(CodecName); the server picks it up from the
// request content-subtype, so the standard proto-encoded health service
// coexists on the same server.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype under which the JSON codec registers
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
