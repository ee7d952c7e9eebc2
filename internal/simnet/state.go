package simnet

import (
	"math/big"

	"vaultflow/internal/sui"
)

// ownerPending marks an object created in the executing transaction that
// has not been transferred, shared or consumed yet.
const ownerPending sui.OwnerKind = ""

type object struct {
	ID      sui.Address
	Type    sui.TypeTag
	Owner   sui.Owner
	Version uint64

	Coin        *coinState
	Farm        *farmState
	FarmCap     *capState
	Vault       *vaultState
	VaultCap    *vaultCapState
	PriceInfo   *priceInfoState
	Aggregator  *aggregatorState
	LotusConfig *lotusConfigState
	Pool        *poolState
}

type coinState struct {
	CoinType sui.TypeTag
	Balance  uint64
}

type capState struct {
	Target sui.Address
}

type tdFarm struct {
	RewardType sui.TypeTag
	StartSec   uint64
	Balance    uint64
	Rate       uint64
	LastMs     uint64
	Members    map[sui.Address]uint64
}

type farmState struct {
	Cap           sui.Address
	AllowedAssets map[string]bool
	AllowedPools  map[sui.Address]bool
	TDFarms       map[string]*tdFarm
}

type position struct {
	Base  uint64
	Quote uint64
}

type order struct {
	ID       *big.Int
	ClientID uint64
	Price    uint64
	Quantity uint64
	IsBid    bool
}

type vaultState struct {
	Farm         sui.Address
	Pool         sui.Address
	Base         sui.TypeTag
	Quote        sui.TypeTag
	BaseBalance  uint64
	QuoteBalance uint64
	Weight       uint64
	Positions    map[sui.Address]*position
	Incentives   map[string]uint64
	Performance  map[string]uint64
	Strategy     map[string]uint64
	Orders       []order
	OrderSeq     uint64
	CreatorCap   sui.Address
	TradeCap     sui.Address
	Closed       bool
}

type vaultCapState struct {
	Vault   sui.Address
	Creator bool
}

type priceInfoState struct {
	Feed      string
	Price     uint64
	PublishMs uint64
}

type aggregatorCoin struct {
	Feed     string
	Decimals uint8
	Config   uint64
	HasFeed  bool
}

type aggregatorState struct {
	Coins map[string]*aggregatorCoin
}

type lotusConfigState struct {
	Version           uint64
	PerformanceFeeBps uint64
	StrategyFeeBps    uint64
	CooldownMs        uint64
	MaxDeepFeeBps     uint64
}

type poolState struct {
	Base  sui.TypeTag
	Quote sui.TypeTag
}

type state struct {
	objects map[sui.Address]*object
	nextID  uint64
}

func newState() *state {
	return &state{objects: make(map[sui.Address]*object)}
}

func (s *state) clone() *state {
	out := &state{objects: make(map[sui.Address]*object, len(s.objects)), nextID: s.nextID}
	for id, obj := range s.objects {
		out.objects[id] = obj.clone()
	}
	return out
}

// newID allocates ids in a range that cannot collide with configured addresses.
func (s *state) newID() sui.Address {
	s.nextID++
	var id sui.Address
	id[0] = 0x5e
	n := s.nextID
	for i := len(id) - 1; n > 0; i-- {
		id[i] = byte(n)
		n >>= 8
	}
	return id
}

func (o *object) clone() *object {
	out := *o
	if o.Coin != nil {
		c := *o.Coin
		out.Coin = &c
	}
	if o.Farm != nil {
		out.Farm = o.Farm.clone()
	}
	if o.FarmCap != nil {
		c := *o.FarmCap
		out.FarmCap = &c
	}
	if o.Vault != nil {
		out.Vault = o.Vault.clone()
	}
	if o.VaultCap != nil {
		c := *o.VaultCap
		out.VaultCap = &c
	}
	if o.PriceInfo != nil {
		p := *o.PriceInfo
		out.PriceInfo = &p
	}
	if o.Aggregator != nil {
		a := &aggregatorState{Coins: make(map[string]*aggregatorCoin, len(o.Aggregator.Coins))}
		for k, v := range o.Aggregator.Coins {
			c := *v
			a.Coins[k] = &c
		}
		out.Aggregator = a
	}
	if o.LotusConfig != nil {
		c := *o.LotusConfig
		out.LotusConfig = &c
	}
	if o.Pool != nil {
		p := *o.Pool
		out.Pool = &p
	}
	return &out
}

func (f *farmState) clone() *farmState {
	out := &farmState{
		Cap:           f.Cap,
		AllowedAssets: make(map[string]bool, len(f.AllowedAssets)),
		AllowedPools:  make(map[sui.Address]bool, len(f.AllowedPools)),
		TDFarms:       make(map[string]*tdFarm, len(f.TDFarms)),
	}
	for k, v := range f.AllowedAssets {
		out.AllowedAssets[k] = v
	}
	for k, v := range f.AllowedPools {
		out.AllowedPools[k] = v
	}
	for k, td := range f.TDFarms {
		c := *td
		c.Members = make(map[sui.Address]uint64, len(td.Members))
		for m, w := range td.Members {
			c.Members[m] = w
		}
		out.TDFarms[k] = &c
	}
	return out
}

func (v *vaultState) clone() *vaultState {
	out := *v
	out.Positions = make(map[sui.Address]*position, len(v.Positions))
	for k, p := range v.Positions {
		c := *p
		out.Positions[k] = &c
	}
	out.Incentives = copyAmounts(v.Incentives)
	out.Performance = copyAmounts(v.Performance)
	out.Strategy = copyAmounts(v.Strategy)
	out.Orders = make([]order, len(v.Orders))
	for i, o := range v.Orders {
		o.ID = new(big.Int).Set(o.ID)
		out.Orders[i] = o
	}
	return &out
}

func copyAmounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func coinType(of sui.TypeTag) sui.TypeTag {
	return sui.StructType(sui.FrameworkAddress, "coin", "Coin", of)
}
