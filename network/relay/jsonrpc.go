package relay

import (
	"encoding/json"
)

const jsonrpcVersion = "2.0"

// Methods of the session coordination server.
const (
	MethodGroupCreate    = "Group.create"
	MethodGroupJoin      = "Group.join"
	MethodSessionCreate  = "Session.create"
	MethodSessionJoin    = "Session.join"
	MethodSessionSignup  = "Session.signup"
	MethodSessionLoad    = "Session.load"
	MethodSessionMessage = "Session.message"
	MethodNotifyAddress  = "Notify.address"
	MethodNotifyProposal = "Notify.proposal"
)

// Events pushed by the session coordination server.
const (
	// EventSessionMessage carries a protocol message relayed from a peer.
	EventSessionMessage = "sessionMessage"
	// EventSessionSignup signals that all parties of a key generation signed up.
	EventSessionSignup = "sessionSignup"
	// EventSessionLoad signals that all signers of a signing session loaded their key share.
	EventSessionLoad = "sessionLoad"
	// EventNotifyAddress announces the address computed by a key generation.
	EventNotifyAddress = "notifyAddress"
	// EventNotifyProposal announces a signing proposal.
	EventNotifyProposal = "notifyProposal"
)

// Request is a JSON-RPC request, or a notification if ID is nil.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a frame sent by the server: either the response to a request
// (ID set) or an event (Method set).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsEvent returns true if the frame is a server pushed event.
func (r *Response) IsEvent() bool {
	return r.ID == nil && r.Method != ""
}

func encodeParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}
