package chain

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

// maxGasPayment bounds the number of gas coins in one payment.
const maxGasPayment = 255

// resolveObjects fills every object input with its ownership-specific reference.
func (s *Submitter) resolveObjects(ctx context.Context, tx *ptb.Transaction) error {
	ids := tx.ObjectIDs()
	if len(ids) == 0 {
		return nil
	}

	var objects []objectResponse
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		objects, err = s.client.multiGetObjects(ctx, ids)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch input objects: %w", err)
	}

	byID := make(map[sui.Address]objectData, len(objects))
	for i, obj := range objects {
		if obj.Data == nil || obj.Data.Owner == nil {
			return fmt.Errorf("input object %s not found", ids[i])
		}
		byID[ids[i]] = *obj.Data
	}

	for i := range tx.Inputs {
		in := tx.Inputs[i].Object
		if in == nil {
			continue
		}
		data := byID[in.ID]
		arg, err := objectArg(in, data)
		if err != nil {
			return err
		}
		in.Arg = &arg
	}
	return nil
}

func objectArg(in *ptb.ObjectInput, data objectData) (ptb.ObjectArg, error) {
	owner := data.Owner.Owner
	if owner.IsShared() {
		return ptb.ObjectArg{
			Kind:                 ptb.ObjectShared,
			InitialSharedVersion: owner.InitialSharedVersion,
			Mutable:              in.Mutable,
		}, nil
	}
	digest, err := sui.ParseDigest(data.Digest)
	if err != nil {
		return ptb.ObjectArg{}, fmt.Errorf("object %s: %w", in.ID, err)
	}
	return ptb.ObjectArg{
		Kind: ptb.ObjectImmOrOwned,
		Ref:  sui.ObjectRef{ObjectID: in.ID, Version: uint64(data.Version), Digest: digest},
	}, nil
}

// selectGas picks the largest SUI coins of owner, skipping coins already used
// as inputs, until their balance covers budget.
func (s *Submitter) selectGas(ctx context.Context, owner sui.Address, budget uint64, exclude []sui.Address) ([]sui.ObjectRef, error) {
	skip := make(map[sui.Address]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	coins, err := s.listCoins(ctx, owner, suiCoinType)
	if err != nil {
		return nil, fmt.Errorf("list gas coins: %w", err)
	}
	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].Balance > coins[j].Balance
	})

	var (
		payment []sui.ObjectRef
		total   uint64
	)
	for _, coin := range coins {
		if _, ok := skip[coin.CoinObjectID]; ok {
			continue
		}
		digest, err := sui.ParseDigest(coin.Digest)
		if err != nil {
			return nil, fmt.Errorf("gas coin %s: %w", coin.CoinObjectID, err)
		}
		payment = append(payment, sui.ObjectRef{ObjectID: coin.CoinObjectID, Version: uint64(coin.Version), Digest: digest})
		total += uint64(coin.Balance)
		if total >= budget || len(payment) == maxGasPayment {
			break
		}
	}
	if total < budget {
		return nil, fmt.Errorf("insufficient gas: balance %d below budget %d", total, budget)
	}
	return payment, nil
}

func (s *Submitter) listCoins(ctx context.Context, owner sui.Address, coinType string) ([]coinData, error) {
	var (
		out    []coinData
		cursor *string
	)
	for {
		var page coinPage
		err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			page, err = s.client.getCoins(ctx, owner, coinType, cursor)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// resolve runs object resolution, gas price and gas selection concurrently.
func (s *Submitter) resolve(ctx context.Context, sender sui.Address, tx *ptb.Transaction, budget uint64) (ptb.GasData, error) {
	gas := ptb.GasData{Owner: sender, Budget: budget}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.resolveObjects(gctx, tx)
	})
	g.Go(func() error {
		return withRetry(gctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
			price, err := s.client.referenceGasPrice(ctx)
			if err != nil {
				return fmt.Errorf("reference gas price: %w", err)
			}
			gas.Price = price
			return nil
		})
	})
	g.Go(func() error {
		payment, err := s.selectGas(gctx, sender, budget, tx.ObjectIDs())
		if err != nil {
			return err
		}
		gas.Payment = payment
		return nil
	})
	if err := g.Wait(); err != nil {
		return ptb.GasData{}, err
	}
	return gas, nil
}
