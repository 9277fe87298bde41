package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

const factoryABIJSON = `[
  {"inputs": [{"type": "address"}, {"type": "address"}, {"type": "uint24"}], "name": "getPool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const poolABIJSON = `[
  {"inputs": [], "name": "slot0", "outputs": [{"type": "uint160"}, {"type": "int24"}, {"type": "uint16"}, {"type": "uint16"}, {"type": "uint16"}, {"type": "uint8"}, {"type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"type": "uint128"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"type": "uint24"}], "stateMutability": "view", "type": "function"}
]`

var (
	factoryABI     abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error
	poolABI        abi.ABI
	poolABIOnce    sync.Once
	poolABIErr     error
)

func factoryABIInstance() (abi.ABI, error) {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryABIJSON))
	})
	return factoryABI, factoryABIErr
}

func poolABIInstance() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

// ResolvePool asks the v3 factory for the pool of a token pair and fee tier.
// A zero address result means the pool does not exist.
func (c *Client) ResolvePool(ctx context.Context, factory, token0, token1 string, fee int) (string, error) {
	fabi, err := factoryABIInstance()
	if err != nil {
		return "", fmt.Errorf("chain: parse factory abi: %w", err)
	}

	data, err := fabi.Pack("getPool",
		common.HexToAddress(token0),
		common.HexToAddress(token1),
		big.NewInt(int64(fee)),
	)
	if err != nil {
		return "", fmt.Errorf("chain: pack getPool: %w", err)
	}

	out, err := c.callContract(ctx, common.HexToAddress(factory), data)
	if err != nil {
		return "", fmt.Errorf("%w: getPool call: %v", domain.ErrPoolStateUnavailable, err)
	}

	values, err := fabi.Unpack("getPool", out)
	if err != nil {
		return "", fmt.Errorf("%w: unpack getPool: %v", domain.ErrPoolStateUnavailable, err)
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return "", fmt.Errorf("%w: getPool: %v", domain.ErrPoolStateUnavailable, err)
	}
	if addr == (common.Address{}) {
		return "", fmt.Errorf("%w: no pool for pair (%s, %s) fee %d", domain.ErrPoolStateUnavailable, token0, token1, fee)
	}
	return addr.Hex(), nil
}

// PoolState reads slot0, liquidity, tickSpacing, and fee from a v3 pool in
// one sweep of eth_calls.
func (c *Client) PoolState(ctx context.Context, pool string) (domain.PoolState, error) {
	pabi, err := poolABIInstance()
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("chain: parse pool abi: %w", err)
	}
	poolAddr := common.HexToAddress(pool)

	slot0, err := c.callPoolMethod(ctx, pabi, poolAddr, "slot0")
	if err != nil {
		return domain.PoolState{}, err
	}
	sqrtPrice, err := asBigInt(slot0[0])
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("%w: slot0 sqrtPriceX96: %v", domain.ErrPoolStateUnavailable, err)
	}
	tickBig, err := asBigInt(slot0[1])
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("%w: slot0 tick: %v", domain.ErrPoolStateUnavailable, err)
	}

	liq, err := c.callPoolMethod(ctx, pabi, poolAddr, "liquidity")
	if err != nil {
		return domain.PoolState{}, err
	}
	liquidity, err := asBigInt(liq[0])
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("%w: liquidity: %v", domain.ErrPoolStateUnavailable, err)
	}

	spacing, err := c.callPoolMethod(ctx, pabi, poolAddr, "tickSpacing")
	if err != nil {
		return domain.PoolState{}, err
	}
	tickSpacing, err := asBigInt(spacing[0])
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("%w: tickSpacing: %v", domain.ErrPoolStateUnavailable, err)
	}

	feeOut, err := c.callPoolMethod(ctx, pabi, poolAddr, "fee")
	if err != nil {
		return domain.PoolState{}, err
	}
	fee, err := asBigInt(feeOut[0])
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("%w: fee: %v", domain.ErrPoolStateUnavailable, err)
	}

	return domain.PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         int(tickBig.Int64()),
		Liquidity:    liquidity,
		TickSpacing:  int(tickSpacing.Int64()),
		Fee:          int(fee.Int64()),
	}, nil
}

func (c *Client) callPoolMethod(ctx context.Context, pabi abi.ABI, pool common.Address, method string) ([]interface{}, error) {
	data, err := pabi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := c.callContract(ctx, pool, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s call on %s: %v", domain.ErrPoolStateUnavailable, method, pool.Hex(), err)
	}
	values, err := pabi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", domain.ErrPoolStateUnavailable, method, err)
	}
	return values, nil
}
