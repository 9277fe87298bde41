package domain

import (
	"context"
	"math/big"
)

// Wallet is the signing capability the pipeline holds. It exposes no key
// material: only the address, the chain, and the ability to sign and submit
// a transaction. Writes through a single Wallet are serialized so nonces
// stay strictly increasing.
type Wallet interface {
	Address() string
	ChainID() *big.Int
	SignAndSend(ctx context.Context, to string, data []byte, value *big.Int) (txHash string, err error)
}
