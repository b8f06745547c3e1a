package hubrpc

import "encoding/json"

// jsonCodec lets the hub client drive google.golang.org/grpc's generic
// streaming and unary call machinery (connection readiness, flow control,
// cancellation) without depending on protoc-generated message types: the
// hub's wire messages are modeled here as plain Go structs (pkg/shuttle's
// HubEvent/HubMessage/MessagesPage) and this codec is what grpc uses to turn
// them into bytes on the wire and back. Real hub deployments speak actual
// protobuf; registering an alternate grpc.Codec for a JSON wire format is a
// standard, documented grpc extension point (see google.golang.org/grpc/
// encoding), used here because this module does not run protoc.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
