package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/plaetorius/streambet/internal/domain"
)

const (
	placeBetGasLimit    = uint64(200_000)
	resolvePoolGasLimit = uint64(150_000)

	receiptPollInterval = 2 * time.Second
)

// bettingPoolABI covers the three contract entry points the backend uses.
// Side encoding matches the contract's BetSide enum: A = 0, B = 1.
var bettingPoolABI abi.ABI

func init() {
	var err error
	bettingPoolABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "placeBet",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "poolId", "type": "uint256"},
				{"name": "side", "type": "uint8"}
			],
			"outputs": []
		},
		{
			"name": "resolvePool",
			"type": "function",
			"inputs": [
				{"name": "poolId", "type": "uint256"},
				{"name": "resolution", "type": "uint8"}
			],
			"outputs": []
		},
		{
			"name": "getPoolInfo",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "poolId", "type": "uint256"}],
			"outputs": [
				{"name": "totalAmountA", "type": "uint256"},
				{"name": "totalAmountB", "type": "uint256"},
				{"name": "totalBetsA", "type": "uint256"},
				{"name": "totalBetsB", "type": "uint256"},
				{"name": "resolution", "type": "uint8"},
				{"name": "resolved", "type": "bool"}
			]
		}
	]`))
	if err != nil {
		panic("betting pool abi parse: " + err.Error())
	}
}

// EthereumClient implements Client against a BettingPool deployment.
// Transactions are signed with the operator key; the wallet session layer
// has already validated the caller before anything reaches this type.
type EthereumClient struct {
	client         *ethclient.Client
	contract       common.Address
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	receiptTimeout time.Duration
	log            *slog.Logger
}

// NewEthereumClient dials the RPC endpoint and prepares the signer.
// privateKeyHex may carry a 0x prefix.
func NewEthereumClient(rpcURL, contractAddr, privateKeyHex string, chainID int64, receiptTimeout time.Duration, log *slog.Logger) (*EthereumClient, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: decode operator key: %w", err)
	}
	key, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid operator key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc %s: %w", rpcURL, err)
	}

	return &EthereumClient{
		client:         client,
		contract:       common.HexToAddress(contractAddr),
		chainID:        big.NewInt(chainID),
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		receiptTimeout: receiptTimeout,
		log:            log,
	}, nil
}

// PlaceBet submits placeBet(poolId, side) with the stake as the tx value.
func (c *EthereumClient) PlaceBet(ctx context.Context, poolID *big.Int, isAnswerA bool, amountWei *big.Int) (string, error) {
	callData, err := bettingPoolABI.Pack("placeBet", poolID, sideEnum(isAnswerA))
	if err != nil {
		return "", fmt.Errorf("chain.PlaceBet: pack calldata: %w", err)
	}

	hash, err := c.sendTx(ctx, callData, amountWei, placeBetGasLimit)
	if err != nil {
		return "", fmt.Errorf("chain.PlaceBet: %w", classifyRPCError(err))
	}

	c.log.Info("chain: placeBet sent", "pool_id", poolID, "tx", hash)
	return hash, nil
}

// ResolvePool submits resolvePool(poolId, resolution).
func (c *EthereumClient) ResolvePool(ctx context.Context, poolID *big.Int, isAnswerA bool) (string, error) {
	callData, err := bettingPoolABI.Pack("resolvePool", poolID, sideEnum(isAnswerA))
	if err != nil {
		return "", fmt.Errorf("chain.ResolvePool: pack calldata: %w", err)
	}

	hash, err := c.sendTx(ctx, callData, big.NewInt(0), resolvePoolGasLimit)
	if err != nil {
		return "", fmt.Errorf("chain.ResolvePool: %w", classifyRPCError(err))
	}

	c.log.Info("chain: resolvePool sent", "pool_id", poolID, "is_answer_a", isAnswerA, "tx", hash)
	return hash, nil
}

// WaitForReceipt polls until the transaction is mined or the configured
// timeout elapses. A reverted transaction returns a *TxError.
func (c *EthereumClient) WaitForReceipt(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("chain.WaitForReceipt: %s: %w", txHash, ctx.Err())
		case <-ticker.C:
			receipt, err := c.client.TransactionReceipt(ctx, hash)
			if err != nil {
				continue // not yet mined
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return NewTxError(CodeInternalRPC, "")
			}
			return nil
		}
	}
}

// GetPoolInfo reads getPoolInfo(poolId) via eth_call.
func (c *EthereumClient) GetPoolInfo(ctx context.Context, poolID *big.Int) (domain.PoolInfo, error) {
	callData, err := bettingPoolABI.Pack("getPoolInfo", poolID)
	if err != nil {
		return domain.PoolInfo{}, fmt.Errorf("chain.GetPoolInfo: pack calldata: %w", err)
	}

	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: callData,
	}, nil)
	if err != nil {
		return domain.PoolInfo{}, fmt.Errorf("chain.GetPoolInfo: call: %w", err)
	}

	vals, err := bettingPoolABI.Unpack("getPoolInfo", raw)
	if err != nil || len(vals) != 6 {
		return domain.PoolInfo{}, fmt.Errorf("chain.GetPoolInfo: unpack: %w", err)
	}

	return domain.PoolInfo{
		TotalAmountA: vals[0].(*big.Int),
		TotalAmountB: vals[1].(*big.Int),
		TotalBetsA:   vals[2].(*big.Int).Int64(),
		TotalBetsB:   vals[3].(*big.Int).Int64(),
		WinnerIsA:    vals[4].(uint8) == 0,
		Resolved:     vals[5].(bool),
	}, nil
}

// BalanceOf reads the current wei balance of an address.
func (c *EthereumClient) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	bal, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("chain.BalanceOf: %s: %w", address, err)
	}
	return bal, nil
}

// sendTx builds, signs, and broadcasts a legacy transaction to the contract.
func (c *EthereumClient) sendTx(ctx context.Context, callData []byte, value *big.Int, gasLimit uint64) (string, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	estimate, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.from,
		To:       &c.contract,
		Value:    value,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		estimate = gasLimit
		c.log.Warn("chain: gas estimate failed, using default", "error", err, "limit", gasLimit)
	}
	estimate = estimate * 12 / 10

	tx := types.NewTransaction(nonce, c.contract, value, estimate, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// sideEnum maps a side to the contract's BetSide value.
func sideEnum(isAnswerA bool) uint8 {
	if isAnswerA {
		return 0
	}
	return 1
}

// classifyRPCError attaches a provider error code where one can be read off
// the error text, so callers get a *TxError with a user message instead of
// raw RPC noise.
func classifyRPCError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return NewTxError(CodeInsufficientFunds, "")
	case strings.Contains(msg, "-32000"):
		return NewTxError(CodeInsufficientGas, "")
	case strings.Contains(msg, "-32601"):
		return NewTxError(CodeMethodNotFound, "")
	case strings.Contains(msg, "-32602"):
		return NewTxError(CodeInvalidParams, "")
	default:
		return err
	}
}

var _ Client = (*EthereumClient)(nil)
