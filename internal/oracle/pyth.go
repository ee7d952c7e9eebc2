package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

var (
	ErrUnknownFeed      = errors.New("no price info object for feed")
	ErrFeedNotInPayload = errors.New("feed missing from update payload")
	ErrMultipleMessages = errors.New("multiple accumulator messages in one update")
)

// PriceService is the source of signed accumulator messages.
type PriceService interface {
	LatestUpdates(ctx context.Context, feedIDs []string) ([][]byte, error)
}

// Payload is a fetched update for a set of feeds.
type Payload struct {
	Messages  [][]byte
	FeedIDs   []string
	FetchedAt time.Time
}

func (p Payload) covers(feed string) bool {
	for _, id := range p.FeedIDs {
		if NormalizeFeedID(id) == feed {
			return true
		}
	}
	return false
}

// Config addresses the Pyth and Wormhole deployments.
type Config struct {
	PythPackage      sui.Address
	PythState        sui.Address
	WormholePackage  sui.Address
	WormholeState    sui.Address
	BaseUpdateFee    uint64
	PriceInfoObjects map[string]sui.Address
}

// Updater refreshes Pyth price-info objects inside a transaction.
type Updater struct {
	prices PriceService
	cfg    Config
	feeds  map[string]sui.Address
	logger *zap.Logger
}

func NewUpdater(prices PriceService, cfg Config, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	feeds := make(map[string]sui.Address, len(cfg.PriceInfoObjects))
	for id, obj := range cfg.PriceInfoObjects {
		feeds[NormalizeFeedID(id)] = obj
	}
	return &Updater{prices: prices, cfg: cfg, feeds: feeds, logger: logger}
}

// NormalizeFeedID lowercases a feed id and ensures the 0x prefix.
func NormalizeFeedID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

// PriceInfoObject returns the price-info object id registered for feed.
func (u *Updater) PriceInfoObject(feed string) (sui.Address, error) {
	obj, ok := u.feeds[NormalizeFeedID(feed)]
	if !ok {
		return sui.Address{}, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	return obj, nil
}

// FetchUpdateData fetches the latest signed update covering feedIDs.
func (u *Updater) FetchUpdateData(ctx context.Context, feedIDs []string) (Payload, error) {
	if u.prices == nil {
		return Payload{}, fmt.Errorf("price service is nil")
	}
	unique := dedupe(feedIDs)
	msgs, err := u.prices.LatestUpdates(ctx, unique)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch price updates: %w", err)
	}
	u.logger.Debug("price update fetched", zap.Strings("feeds", unique), zap.Int("messages", len(msgs)))
	return Payload{Messages: msgs, FeedIDs: unique, FetchedAt: time.Now()}, nil
}

// SubmitUpdate appends the verify-and-update calls for feedIDs and returns
// the refreshed price-info objects in feedIDs order. Repeated feeds are
// updated once and share an argument.
func (u *Updater) SubmitUpdate(tx *ptb.Builder, payload Payload, feedIDs []string) ([]ptb.Argument, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("no feeds to update")
	}
	if len(payload.Messages) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMultipleMessages, len(payload.Messages))
	}
	unique := dedupe(feedIDs)
	objects := make(map[string]sui.Address, len(unique))
	for _, feed := range unique {
		if !payload.covers(feed) {
			return nil, fmt.Errorf("%w: %s", ErrFeedNotInPayload, feed)
		}
		obj, err := u.PriceInfoObject(feed)
		if err != nil {
			return nil, err
		}
		objects[feed] = obj
	}

	msg := payload.Messages[0]
	vaa, err := ExtractVAA(msg)
	if err != nil {
		return nil, err
	}

	verified := tx.MoveCall(
		ptb.NewTarget(u.cfg.WormholePackage, "vaa", "parse_and_verify"),
		nil,
		tx.ReadOnlyObject(u.cfg.WormholeState), tx.PureBytes(vaa), tx.Clock(),
	)
	potato := tx.MoveCall(
		ptb.NewTarget(u.cfg.PythPackage, "pyth", "create_authenticated_price_infos_using_accumulator"),
		nil,
		tx.ReadOnlyObject(u.cfg.PythState), tx.PureBytes(msg), verified.Arg(), tx.Clock(),
	).Arg()

	fees := make([]uint64, len(unique))
	for i := range fees {
		fees[i] = u.cfg.BaseUpdateFee
	}
	coins := tx.SplitCoins(ptb.GasCoin(), fees...)

	for i, feed := range unique {
		potato = tx.MoveCall(
			ptb.NewTarget(u.cfg.PythPackage, "pyth", "update_single_price_feed"),
			nil,
			tx.ReadOnlyObject(u.cfg.PythState), potato, tx.Object(objects[feed]), coins.Nested(i), tx.Clock(),
		).Arg()
	}

	priceInfo := sui.StructType(u.cfg.PythPackage, "price_info", "PriceInfo")
	tx.MoveCall(ptb.NewTarget(u.cfg.PythPackage, "hot_potato_vector", "destroy"), []sui.TypeTag{priceInfo}, potato)

	out := make([]ptb.Argument, len(feedIDs))
	for i, feed := range feedIDs {
		out[i] = tx.Object(objects[NormalizeFeedID(feed)])
	}
	return out, nil
}

func dedupe(feedIDs []string) []string {
	seen := make(map[string]struct{}, len(feedIDs))
	out := make([]string, 0, len(feedIDs))
	for _, id := range feedIDs {
		id = NormalizeFeedID(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
