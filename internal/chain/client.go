package chain

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"vaultflow/internal/sui"
)

const suiCoinType = "0x2::sui::SUI"

// Client wraps a JSON-RPC connection to a Sui fullnode.
type Client struct {
	rpcClient *rpc.Client
}

// NewClient dials the fullnode RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{rpcClient: rpcClient}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// referenceGasPrice returns the current epoch's reference gas price.
func (c *Client) referenceGasPrice(ctx context.Context) (uint64, error) {
	var price jsonUint64
	if err := c.rpcClient.CallContext(ctx, &price, "suix_getReferenceGasPrice"); err != nil {
		return 0, err
	}
	return uint64(price), nil
}

// multiGetObjects fetches object metadata with owner and type.
func (c *Client) multiGetObjects(ctx context.Context, ids []sui.Address) ([]objectResponse, error) {
	params := make([]string, len(ids))
	for i, id := range ids {
		params[i] = id.String()
	}
	var out []objectResponse
	opts := objectDataOptions{ShowOwner: true, ShowType: true}
	if err := c.rpcClient.CallContext(ctx, &out, "sui_multiGetObjects", params, opts); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("multi get objects: requested %d, got %d", len(ids), len(out))
	}
	return out, nil
}

// getCoins returns one page of coins of coinType owned by owner.
func (c *Client) getCoins(ctx context.Context, owner sui.Address, coinType string, cursor *string) (coinPage, error) {
	var page coinPage
	err := c.rpcClient.CallContext(ctx, &page, "suix_getCoins", owner.String(), coinType, cursor, nil)
	return page, err
}

// executeTransactionBlock submits signed transaction bytes and waits for local execution.
func (c *Client) executeTransactionBlock(ctx context.Context, txBytes []byte, signatures []string) (transactionResponse, error) {
	var resp transactionResponse
	opts := responseOptions{ShowEffects: true, ShowObjectChanges: true}
	err := c.rpcClient.CallContext(ctx, &resp, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes), signatures, opts, "WaitForLocalExecution")
	return resp, err
}

// devInspectTransactionBlock runs a transaction kind without committing it.
func (c *Client) devInspectTransactionBlock(ctx context.Context, sender sui.Address, txKind []byte) (devInspectResponse, error) {
	var resp devInspectResponse
	err := c.rpcClient.CallContext(ctx, &resp, "sui_devInspectTransactionBlock",
		sender.String(), base64.StdEncoding.EncodeToString(txKind), nil, nil)
	return resp, err
}

// getTransactionBlock fetches a committed transaction's effects by digest.
func (c *Client) getTransactionBlock(ctx context.Context, digest string) (transactionResponse, error) {
	var resp transactionResponse
	opts := responseOptions{ShowEffects: true}
	err := c.rpcClient.CallContext(ctx, &resp, "sui_getTransactionBlock", digest, opts)
	return resp, err
}
