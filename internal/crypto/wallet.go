package crypto

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NodeBackend is the slice of an Ethereum node the wallet needs to build,
// sign, and submit transactions. *ethclient.Client satisfies it.
type NodeBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Wallet signs and submits EIP-1559 transactions from a single EOA. All
// writes go through one mutex so nonces are fetched and consumed strictly
// in order even when pipeline runs overlap.
type Wallet struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend NodeBackend
	signer  types.Signer

	// GasLimitMultiplier pads the node's gas estimate. Zero means no padding.
	GasLimitMultiplier float64
}

// NewWallet creates a Wallet from a hex-encoded secp256k1 private key.
func NewWallet(privateKeyHex string, chainID *big.Int, backend NodeBackend) (*Wallet, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: invalid private key: %w", err)
	}

	return &Wallet{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID: new(big.Int).Set(chainID),
		backend: backend,
		signer:  types.NewLondonSigner(chainID),
	}, nil
}

// Address returns the checksummed hex address of the wallet.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// ChainID returns a copy of the chain id the wallet signs for.
func (w *Wallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// SignAndSend builds an EIP-1559 transaction to the given address with the
// given calldata and value, signs it, and submits it. It returns the
// transaction hash. The call blocks other writers on the same wallet until
// the transaction is accepted by the node.
func (w *Wallet) SignAndSend(ctx context.Context, to string, data []byte, value *big.Int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	toAddr := common.HexToAddress(to)
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: fetching nonce: %w", err)
	}

	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: suggesting gas tip: %w", err)
	}

	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: fetching head: %w", err)
	}
	// feeCap = 2*baseFee + tip, the usual headroom for a few blocks of drift.
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tip,
	)

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &toAddr,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: estimating gas: %w", err)
	}
	if w.GasLimitMultiplier > 1 {
		gas = uint64(float64(gas) * w.GasLimitMultiplier)
	}

	tx, err := types.SignNewTx(w.key, w.signer, &types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &toAddr,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: signing transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("crypto/wallet: sending transaction: %w", err)
	}

	return tx.Hash().Hex(), nil
}
