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

const erc20ABIJSON = `[
  {"inputs": [{"type": "address"}, {"type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// Allowance reads the current ERC-20 allowance granted by owner to spender.
// The reading is always fresh from the node; nothing is cached.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}

	data, err := erc20.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("chain: pack allowance: %w", err)
	}

	out, err := c.callContract(ctx, common.HexToAddress(token), data)
	if err != nil {
		return nil, fmt.Errorf("%w: allowance call on %s: %v", domain.ErrAllowanceCheckFailed, token, err)
	}

	values, err := erc20.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack allowance: %v", domain.ErrAllowanceCheckFailed, err)
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%w: allowance: %v", domain.ErrAllowanceCheckFailed, err)
	}
	return amount, nil
}

// BalanceOf reads the ERC-20 balance of an account.
func (c *Client) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}

	data, err := erc20.Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOf: %w", err)
	}

	out, err := c.callContract(ctx, common.HexToAddress(token), data)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf call on %s: %w", token, err)
	}

	values, err := erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack balanceOf: %w", err)
	}
	return asBigInt(values[0])
}

// ApproveCalldata encodes an ERC-20 approve(spender, amount) call for
// submission through the wallet.
func ApproveCalldata(spender string, amount *big.Int) ([]byte, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("chain: pack approve: %w", err)
	}
	return data, nil
}

// asBigInt normalizes an unpacked ABI value into *big.Int.
func asBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case uint8:
		return big.NewInt(int64(n)), nil
	case uint32:
		return big.NewInt(int64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("unexpected abi value type %T", v)
	}
}

// asAddress normalizes an unpacked ABI value into a common.Address.
func asAddress(v interface{}) (common.Address, error) {
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected abi value type %T", v)
	}
	return addr, nil
}
