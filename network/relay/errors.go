package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClientClosed is returned for requests issued on, or pending when, the client shut down.
var ErrClientClosed = errors.New("relay client closed")

// RPCError is an error response of the session coordination server.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRPCError returns whether err is an RPCError
func IsRPCError(err error) bool {
	var target *RPCError
	return errors.As(err, &target)
}
