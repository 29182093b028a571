// Package repl is a session-oriented client for the line-delimited JSON REPL protocol.
//
// The implementation is split into separate files:
//
// - types.go: Client struct, connection states and notification payloads
// - observer.go: Observer interface and adapters
// - options.go: Options and the With* constructors
// - lifecycle.go: Dial, Close and connection-lost handling
// - negotiation.go: clone handshake and session capture
// - registry.go: evaluation and service correlation tables
// - dispatch.go: frame loop, classification and routing
// - communication.go: SubmitEvaluation, SubmitServiceRequest and service conveniences
// - utils.go: request id generation
// - providers.go, websocket_provider.go, net_provider.go: transport channels
// - adapter.go, json_adapter.go, protobuf_adapter.go: typed service adapters
package repl
