package bitcoin

import (
	"errors"
	"fmt"
)

var (
	ErrFailedToParse = errors.New("failed to parse response")
	ErrBadResponse   = errors.New("bad response")
	ErrNotFound      = errors.New("data not found")
	ErrDecode        = errors.New("failed to decode")
)

// JSON-RPC error codes reported by the node
const (
	CodeInvalidRequest      = -32600
	CodeInvalidAddressOrKey = -5
	CodeInvalidParameter    = -8
	CodeClientNotConnected  = -9
	CodeClientInInitialSync = -10
	CodeClientInWarmup      = -28
)

// Codes the node reports while it isn't ready yet. Those aren't actionable.
var benignCodes = map[int]struct{}{
	CodeInvalidRequest:      {},
	CodeClientNotConnected:  {},
	CodeClientInInitialSync: {},
	CodeClientInWarmup:      {},
}

// Codes returned by getblockhash/getblock for heights or hashes the node doesn't have
var notFoundCodes = map[int]struct{}{
	CodeInvalidRequest:      {},
	CodeInvalidParameter:    {},
	CodeInvalidAddressOrKey: {},
}

// Error returned by the node
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (self *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", self.Code, self.Message)
}

func rpcCode(err error) (code int, ok bool) {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return
	}
	return rpcErr.Code, true
}

// True if the error was reported by the node and isn't worth an error log
func IsBenign(err error) bool {
	code, ok := rpcCode(err)
	if !ok {
		return false
	}
	_, ok = benignCodes[code]
	return ok
}

func isNotFound(err error) bool {
	code, ok := rpcCode(err)
	if !ok {
		return false
	}
	_, ok = notFoundCodes[code]
	return ok
}
