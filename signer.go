package relays

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs legacy transactions with an in-process ECDSA key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner wraps the given private key.
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the account address derived from the signing key.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTx signs tx with EIP-155 replay protection and returns the RLP wire
// form ready for raw broadcast.
func (s *LocalSigner) SignTx(tx *UnsignedTx) ([]byte, error) {
	to := tx.To
	signed, err := types.SignNewTx(
		s.key,
		types.NewEIP155Signer(new(big.Int).SetUint64(tx.ChainID)),
		&types.LegacyTx{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			Gas:      tx.Gas,
			To:       &to,
			Value:    tx.Value,
			Data:     tx.Data,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't sign tx at nonce %d: %w", tx.Nonce, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("couldn't serialize signed tx: %w", err)
	}
	return raw, nil
}
