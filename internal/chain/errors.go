package chain

import "fmt"

// TxError is a transaction failure with a provider error code attached.
// Constructing it at the boundary keeps the rest of the system on a single
// code field instead of sniffing provider-specific error shapes.
type TxError struct {
	Code    string
	Message string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("chain: tx failed (%s): %s", e.Code, e.Message)
}

// NewTxError builds a TxError, filling Message from the code table when the
// caller has no better text.
func NewTxError(code, message string) *TxError {
	if message == "" {
		message = UserMessage(code)
	}
	return &TxError{Code: code, Message: message}
}

// Provider error codes the placement flow distinguishes.
const (
	CodeInsufficientGas   = "-32000"
	CodeInternalRPC       = "-32603"
	CodeMethodNotFound    = "-32601"
	CodeInvalidParams     = "-32602"
	CodeActionRejected    = "ACTION_REJECTED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
)

var txUserMessages = map[string]string{
	CodeInsufficientGas:   "Insufficient funds to cover the bet and gas fees.",
	CodeInternalRPC:       "The network rejected the transaction. Please try again.",
	CodeMethodNotFound:    "The wallet does not support this operation.",
	CodeInvalidParams:     "The transaction request was malformed. Please try again.",
	CodeActionRejected:    "Transaction was rejected in the wallet.",
	CodeInsufficientFunds: "Insufficient funds for this bet.",
}

// UserMessage resolves a provider error code to user-facing text, falling
// back to a generic message for unknown codes.
func UserMessage(code string) string {
	if msg, ok := txUserMessages[code]; ok {
		return msg
	}
	return "The bet could not be placed. Please try again."
}
