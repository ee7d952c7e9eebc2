package simnet

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultflow/internal/oracle"
)

// PriceService serves accumulator messages signed with the ledger's
// stand-in VAA, stamped with the ledger clock.
type PriceService struct {
	ledger *Ledger

	mu     sync.Mutex
	prices map[string]uint64
	lag    time.Duration
	calls  int
}

// NewPriceService serves prices (exponent -8) keyed by feed id.
func NewPriceService(ledger *Ledger, prices map[string]uint64) *PriceService {
	p := &PriceService{ledger: ledger, prices: make(map[string]uint64, len(prices))}
	for feed, price := range prices {
		p.prices[oracle.NormalizeFeedID(feed)] = price
	}
	return p
}

// SetLag makes served updates older than the ledger clock by d.
func (p *PriceService) SetLag(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lag = d
}

// SetPrice changes the price served for feed.
func (p *PriceService) SetPrice(feed string, price uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[oracle.NormalizeFeedID(feed)] = price
}

// Calls reports how many fetches were served.
func (p *PriceService) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *PriceService) LatestUpdates(ctx context.Context, feedIDs []string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("no feed ids requested")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	publish := uint64(p.ledger.Now().Add(-p.lag).UnixMilli())
	vaa := binary.BigEndian.AppendUint64(append([]byte{}, simVAAMagic...), publish)
	var updates []byte
	for _, id := range feedIDs {
		feed := oracle.NormalizeFeedID(id)
		price, ok := p.prices[feed]
		if !ok {
			return nil, fmt.Errorf("price feed %s not found", id)
		}
		raw, err := hexutil.Decode(feed)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid feed id %s", id)
		}
		updates = append(updates, encodeUpdate(raw, price, publish)...)
	}
	return [][]byte{oracle.BuildAccumulator(vaa, updates)}, nil
}
