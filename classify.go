package relays

import (
	"errors"
	"regexp"
	"strings"
)

// SubmitErrorKind classifies a node's rejection of a transaction submission.
type SubmitErrorKind int

const (
	// SubmitUnknown: not recognized as benign; the submission is abandoned
	SubmitUnknown SubmitErrorKind = iota
	// SubmitKnownTx: the node already holds this exact transaction and the
	// error payload carries its hash
	SubmitKnownTx
	// SubmitDuplicate: the transaction is already in the pool ("already known")
	SubmitDuplicate
	// SubmitUnderpriced: a pool transaction at this nonce outprices ours
	SubmitUnderpriced
	// SubmitNonceTooLow: the nonce was already consumed on chain
	SubmitNonceTooLow
)

func (k SubmitErrorKind) String() string {
	switch k {
	case SubmitKnownTx:
		return "known-tx"
	case SubmitDuplicate:
		return "duplicate"
	case SubmitUnderpriced:
		return "underpriced"
	case SubmitNonceTooLow:
		return "nonce-too-low"
	default:
		return "unknown"
	}
}

// SubmitError is a structured submission rejection. RPC implementations are
// encouraged to return it directly so the engine can switch on Kind without
// inspecting error text.
type SubmitError struct {
	Kind SubmitErrorKind

	// TxHash is the transaction hash sliced from a known-tx error payload,
	// empty when the payload carried none
	TxHash string

	cause error
}

func (e *SubmitError) Error() string {
	if e.cause != nil {
		return "submit rejected (" + e.Kind.String() + "): " + e.cause.Error()
	}
	return "submit rejected (" + e.Kind.String() + ")"
}

func (e *SubmitError) Unwrap() error {
	return e.cause
}

var txHashPattern = regexp.MustCompile(`0x[0-9a-fA-F]{64}`)

// ClassifySubmitError translates a submission error into a SubmitError.
// Structured errors from the RPC layer pass through untouched; anything else
// goes through the substring table in classifySubmitText. This is the only
// place error text is inspected.
func ClassifySubmitError(err error) *SubmitError {
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}
	return classifySubmitText(err)
}

// classifySubmitText matches the node error strings observed in the wild.
// The substrings are node-implementation specific and inherently fragile,
// which is why this stays confined to one function.
func classifySubmitText(err error) *SubmitError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "known transaction"):
		return &SubmitError{
			Kind:   SubmitKnownTx,
			TxHash: txHashPattern.FindString(err.Error()),
			cause:  err,
		}
	case strings.Contains(msg, "already known"):
		return &SubmitError{Kind: SubmitDuplicate, cause: err}
	case strings.Contains(msg, "underpriced"):
		return &SubmitError{Kind: SubmitUnderpriced, cause: err}
	case strings.Contains(msg, "nonce too low"):
		return &SubmitError{Kind: SubmitNonceTooLow, cause: err}
	default:
		return &SubmitError{Kind: SubmitUnknown, cause: err}
	}
}
