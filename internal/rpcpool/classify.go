package rpcpool

import (
	"errors"
	"strings"
)

// jsonError matches go-ethereum's rpc.Error: a JSON-RPC error carrying the
// server-assigned code.
type jsonError interface {
	Error() string
	ErrorCode() int
}

// dataError matches go-ethereum's rpc.DataError: a JSON-RPC error carrying
// revert data.
type dataError interface {
	Error() string
	ErrorData() interface{}
}

// JSON-RPC error codes that indicate a deterministic failure. Code 3 is the
// EVM execution revert; the -327xx range is malformed-request territory.
var terminalCodes = map[int]bool{
	3:      true, // execution reverted
	-32700: true, // parse error
	-32600: true, // invalid request
	-32601: true, // method not found
	-32602: true, // invalid params
}

// Message signatures used only when the error does not expose a structured
// code. Kept as a fallback for providers that return plain string errors.
var terminalSignatures = []string{
	"execution reverted",
	"vm execution error",
	"invalid argument",
	"invalid opcode",
	"nonce too low",
	"insufficient funds",
	"transaction underpriced",
}

// Terminal reports whether err is a deterministic business-logic failure
// that must not be retried. Everything else (timeouts, refused connections,
// rate limits, 5xx) is treated as transient.
func Terminal(err error) bool {
	if err == nil {
		return false
	}

	var je jsonError
	if errors.As(err, &je) {
		if terminalCodes[je.ErrorCode()] {
			return true
		}
		// A structured code we don't recognize: trust the server that this
		// is an RPC-level condition and fall through to the signatures.
	}

	var de dataError
	if errors.As(err, &de) && de.ErrorData() != nil {
		// Revert data attached: the contract rejected the call.
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range terminalSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}

	return false
}
