package relays

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// RPCClient is the network capability the engine consumes. The engine never
// retries these calls itself; transient transport failures surface to the
// caller and stuck transactions are handled by price escalation, not by
// re-dialing. Implementations should return *SubmitError from the send
// methods where the node's rejection can be classified.
type RPCClient interface {
	// MinedCount returns the account's transaction count at the latest block.
	MinedCount(ctx context.Context, addr common.Address) (uint64, error)

	// PendingCount returns the account's transaction count at the pending
	// block, including pool transactions not yet mined.
	PendingCount(ctx context.Context, addr common.Address) (uint64, error)

	// TransactionReceipt returns the receipt for the given transaction
	// handle, or nil, nil while the transaction is unmined.
	TransactionReceipt(ctx context.Context, handle string) (*Receipt, error)

	// SendTransaction submits by sender address, signing node-side. The
	// account must be unlocked first.
	SendTransaction(ctx context.Context, from common.Address, tx *UnsignedTx) (string, error)

	// SendRawTransaction broadcasts a locally signed, serialized transaction.
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)

	// UnlockAccount asks the node to unlock the operating account with the
	// configured unlock code.
	UnlockAccount(ctx context.Context, addr common.Address, code string) error

	Close()
}

// Signer is the signing capability: sign an unsigned transaction and return
// its serialized wire form, ready for SendRawTransaction.
type Signer interface {
	SignTx(tx *UnsignedTx) ([]byte, error)
}

// CalldataEncoder encodes a method call against a contract ABI.
// go-ethereum's abi.ABI satisfies this directly.
type CalldataEncoder interface {
	Pack(method string, args ...interface{}) ([]byte, error)
}
