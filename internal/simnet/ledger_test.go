package simnet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vaultflow/internal/bcs"
	"vaultflow/internal/chain"
	"vaultflow/internal/config"
	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

var suiType = sui.MustParseTypeTag("0x2::sui::SUI")

func newTestNetwork(t *testing.T) (*Network, config.Addresses) {
	t.Helper()
	addrs, err := config.DefaultAddresses()
	require.NoError(t, err)
	n, err := NewNetwork(addrs, nil)
	require.NoError(t, err)
	return n, n.Ledger.Addresses()
}

func TestSubmitSplitAndTransfer(t *testing.T) {
	n, _ := newTestNetwork(t)
	ctx := context.Background()
	recipient := sui.MustParseAddress("0xabc")

	b := ptb.NewBuilder()
	coins := b.SplitCoins(ptb.GasCoin(), 7, 11)
	b.TransferObjects([]ptb.Argument{coins.Nested(0), coins.Nested(1)}, recipient)

	res, err := n.Ledger.Submit(ctx, n.Admin, b.Transaction(), 100_000_000)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.NotEmpty(t, res.Digest)
	require.Len(t, res.Created(), 2)
	for _, created := range res.Created() {
		require.Equal(t, sui.OwnerAddress, created.Owner.Kind)
		require.Equal(t, recipient, created.Owner.Address)
	}
	require.Equal(t, uint64(18), n.Ledger.Balance(recipient, suiType))

	confirmed, err := n.Ledger.WaitForConfirmation(ctx, res.Digest, time.Second)
	require.NoError(t, err)
	require.Equal(t, res.Digest, confirmed.Digest)
	require.Equal(t, model.StatusSuccess, confirmed.Status)
}

func TestSubmitAbortLeavesNoEffect(t *testing.T) {
	n, _ := newTestNetwork(t)
	before := n.Ledger.Versions()

	b := ptb.NewBuilder()
	coin := b.SplitCoins(ptb.GasCoin(), 5)
	b.TransferObjects([]ptb.Argument{coin.Arg()}, sui.MustParseAddress("0xabc"))
	b.SplitCoins(ptb.GasCoin(), ^uint64(0))

	res, err := n.Ledger.Submit(context.Background(), n.Admin, b.Transaction(), 100_000_000)
	require.ErrorIs(t, err, chain.ErrExecutionFailed)
	require.Equal(t, model.StatusFailure, res.Status)
	require.Contains(t, res.Error, "insufficient balance")
	require.Equal(t, before, n.Ledger.Versions())
	require.Zero(t, n.Ledger.Balance(sui.MustParseAddress("0xabc"), suiType))
}

func TestUnplacedObjectAborts(t *testing.T) {
	n, addrs := newTestNetwork(t)
	b := ptb.NewBuilder()
	farm := b.MoveCall(ptb.NewTarget(addrs.LotusPackage, "lotus_lp_farm", "new"), []sui.TypeTag{addrs.LPType()})
	b.ShareObject(farm.Nested(0), sui.StructType(addrs.LotusPackage, "lotus_lp_farm", "LotusLPFarm", addrs.LPType()))

	_, err := n.Ledger.Submit(context.Background(), n.Admin, b.Transaction(), 100_000_000)
	require.ErrorIs(t, err, chain.ErrExecutionFailed)
	require.Contains(t, err.Error(), "UnusedValueWithoutDrop")
}

func TestForeignOwnedInputRejected(t *testing.T) {
	n, addrs := newTestNetwork(t)
	b := ptb.NewBuilder()
	b.MoveCall(ptb.NewTarget(addrs.LotusPackage, "lotus_config", "update_cold_down_ms"), nil,
		b.Object(addrs.LotusConfig), b.Object(addrs.LotusConfigCap), b.PureU64(100))

	_, err := n.Ledger.Submit(context.Background(), n.Delegate, b.Transaction(), 100_000_000)
	require.ErrorIs(t, err, chain.ErrExecutionFailed)
	require.Contains(t, err.Error(), "not the sender")

	_, err = n.Ledger.Submit(context.Background(), n.Admin, b.Transaction(), 100_000_000)
	require.NoError(t, err)
}

func TestPriceRefresh(t *testing.T) {
	n, _ := newTestNetwork(t)
	ctx := context.Background()
	updater := n.Updater(nil)
	feeds := []string{config.FeedSUIUSD, config.FeedUSDCUSD}

	payload, err := updater.FetchUpdateData(ctx, feeds)
	require.NoError(t, err)
	b := ptb.NewBuilder()
	infos, err := updater.SubmitUpdate(b, payload, feeds)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	res, err := n.Ledger.Submit(ctx, n.Admin, b.Transaction(), 100_000_000)
	require.NoError(t, err)
	mutated := 0
	for _, change := range res.ObjectChanges {
		if change.Type == model.ChangeMutated && change.ObjectType != "" && change.Owner.IsShared() {
			mutated++
		}
	}
	require.Equal(t, 2, mutated)
}

func TestStalePriceRejected(t *testing.T) {
	n, _ := newTestNetwork(t)
	ctx := context.Background()
	updater := n.Updater(nil)
	n.Prices.SetLag(2 * MaxPriceAge)

	payload, err := updater.FetchUpdateData(ctx, []string{config.FeedSUIUSD})
	require.NoError(t, err)
	b := ptb.NewBuilder()
	_, err = updater.SubmitUpdate(b, payload, []string{config.FeedSUIUSD})
	require.NoError(t, err)

	before := n.Ledger.Versions()
	_, err = n.Ledger.Submit(ctx, n.Admin, b.Transaction(), 100_000_000)
	require.ErrorIs(t, err, chain.ErrExecutionFailed)
	require.Contains(t, err.Error(), "stale price update")
	require.Equal(t, before, n.Ledger.Versions())
}

func TestInspectDoesNotCommit(t *testing.T) {
	n, addrs := newTestNetwork(t)
	before := n.Ledger.Versions()

	b := ptb.NewBuilder()
	b.MoveCall(ptb.NewTarget(addrs.LotusPackage, "lotus_config", "update_cold_down_ms"), nil,
		b.Object(addrs.LotusConfig), b.Object(addrs.LotusConfigCap), b.PureU64(100))
	results, err := n.Ledger.Inspect(context.Background(), n.Admin.Address(), b.Transaction())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Empty(t, results[0].ReturnValues)
	require.Equal(t, before, n.Ledger.Versions())

	_, err = n.Ledger.Inspect(context.Background(), n.Delegate.Address(), b.Transaction())
	require.True(t, errors.Is(err, chain.ErrInspection))
}

func TestCoinsSelectsLargestFirst(t *testing.T) {
	n, addrs := newTestNetwork(t)
	deep, err := addrs.Coin("deep")
	require.NoError(t, err)

	ids, err := n.Ledger.Coins(context.Background(), n.Admin.Address(), deep.Type.String(), 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	ids, err = n.Ledger.Coins(context.Background(), n.Admin.Address(), deep.Type.String(), 1_200*deep.Scalar)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	_, err = n.Ledger.Coins(context.Background(), n.Admin.Address(), deep.Type.String(), 2_000*deep.Scalar)
	require.Error(t, err)
}

func TestOrderIDOrdering(t *testing.T) {
	bid := orderID(true, 1_000, 1)
	ask := orderID(false, 1_000, 1)
	require.Equal(t, 1, bid.Cmp(ask))
	require.Equal(t, uint(128), uint(bid.BitLen()))

	e := bcs.NewEncoder()
	require.NoError(t, e.U128(bid))
	require.Len(t, e.Bytes(), 16)
}
