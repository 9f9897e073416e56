package testutil

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ============================================================
// Transaction Builders
// ============================================================

// NewLegacyTx creates a legacy (pre-EIP-1559) transaction for testing
func NewLegacyTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     nil,
	})
}

// SignedLegacyTxBytes creates the serialized wire form of a legacy
// transaction signed with TestPrivateKey1 on the given chain
func SignedLegacyTxBytes(nonce uint64, to common.Address, gasPrice *big.Int, chainID *big.Int) ([]byte, error) {
	signed, err := types.SignNewTx(TestPrivateKey1, types.NewEIP155Signer(chainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("signing test transaction: %w", err)
	}
	return signed.MarshalBinary()
}

// ============================================================
// Receipt Builders
// ============================================================

// NewReceipt creates a test receipt for a transaction with a specific status
func NewReceipt(tx *types.Transaction, status uint64) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            tx.Hash(),
		BlockNumber:       big.NewInt(12345678),
		BlockHash:         common.HexToHash("0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"),
		TransactionIndex:  0,
		GasUsed:           tx.Gas(),
		CumulativeGasUsed: tx.Gas(),
		Logs:              []*types.Log{},
	}
}

// NewSuccessReceipt creates a successful receipt for a transaction
func NewSuccessReceipt(tx *types.Transaction) *types.Receipt {
	return NewReceipt(tx, types.ReceiptStatusSuccessful)
}

// NewFailedReceipt creates a failed (reverted) receipt for a transaction
func NewFailedReceipt(tx *types.Transaction) *types.Receipt {
	return NewReceipt(tx, types.ReceiptStatusFailed)
}
