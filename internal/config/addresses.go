package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"vaultflow/internal/sui"
)

// Coin describes one asset known to the deployment.
type Coin struct {
	Name     string
	Type     sui.TypeTag
	Scalar   uint64
	Decimals uint8
	Feed     string
}

// Addresses is the deployment's address and constant table.
type Addresses struct {
	LotusPackage        sui.Address
	DeepBookPackage     sui.Address
	OracleAggregator    sui.Address
	OracleAggregatorCap sui.Address
	LotusConfig         sui.Address
	LotusConfigCap      sui.Address

	PythState       sui.Address
	WormholeState   sui.Address
	PythPackage     sui.Address
	WormholePackage sui.Address
	PythUpdateFee   uint64

	Pool      sui.Address
	PoolBase  string
	PoolQuote string
	Reward    string

	Coins            map[string]Coin
	PriceInfoObjects map[string]sui.Address
}

// Default reference deployment on Sui testnet.
const (
	defaultLotusPackage        = "0xe8c606b96e6b84e7f2c4c25924cbfc6a30114ef3662f8daf5f9a0087c441ecde"
	defaultDeepBookPackage     = "0xcbf4748a965d469ea3a36cf0ccc5743b96c2d0ae6dee0762ed3eca65fac07f7e"
	defaultOracleAggregator    = "0x7ee0c96a104a32af8fc1be1303be81f0ea174b3dc2f8a034c85f96b311ab3e3b"
	defaultOracleAggregatorCap = "0xb36e0d11b949f80c5d2804e15a91691cc07ed84ccfa5a52444b387113a884ce3"
	defaultLotusConfig         = "0x791d9b90726ee02bb88666d986f6ce7a9f7e38e620c9bf21b8873a4e87c60a75"
	defaultLotusConfigCap      = "0xfc8d5659fb7d88c1457b9cf8df3fae4133ba4e377744b351a91624b9c3935117"
	defaultWormholeState       = "0x31358d198147da50db32eda2562951d53973a0c0ad5ed738e9b17d88b213d790"
	defaultPythState           = "0x243759059f4c3111179da5878c12f68d612c21a8d54d85edc86164bb18be1c7c"
	defaultPoolDeepSui         = "0x48c95963e9eac37a316b7ae04a0deb761bcdcc2b67912374d6036e7f0e9bae9f"

	FeedUSDCUSD = "0x41f3625971ca2ed2263e78573fe5ce23e13d2558ed3f2e47ab0f84fb9e7ae722"
	FeedSUIUSD  = "0x50c67b3fd225db8912a424dd4baed60ffdde625ed2feaaf283724f9608fea266"
	// DEEP/USD is served by the SUI/USD feed on the beta price service.
	FeedDEEPUSD = FeedSUIUSD
)

type coinDefault struct {
	typ      string
	scalar   uint64
	decimals uint8
	feed     string
}

var defaultCoins = map[string]coinDefault{
	"sui":    {"0x2::sui::SUI", 1_000_000_000, 9, FeedSUIUSD},
	"deep":   {"0x36dbef866a1d62bf7328989a10fb2f07d769f4ee587c0de4a0a256e57e0a58a8::deep::DEEP", 1_000_000, 6, FeedDEEPUSD},
	"usdc":   {"0xa1ec7fc00a6f40db9693ad1415d0c193ad3906494428cf252621037bd7117e29::usdc::USDC", 1_000_000, 6, FeedUSDCUSD},
	"dbusdc": {"0xf7152c05930480cd740d7311b5b8b45c6f488e3a53a11c3f74a6fac36a52e0d7::DBUSDC::DBUSDC", 1_000_000, 6, ""},
}

func setAddressDefaults(v *viper.Viper) {
	v.SetDefault("lotus-package", defaultLotusPackage)
	v.SetDefault("deepbook-package", defaultDeepBookPackage)
	v.SetDefault("oracle-aggregator", defaultOracleAggregator)
	v.SetDefault("oracle-aggregator-cap", defaultOracleAggregatorCap)
	v.SetDefault("lotus-config", defaultLotusConfig)
	v.SetDefault("lotus-config-cap", defaultLotusConfigCap)
	v.SetDefault("pyth-state", defaultPythState)
	v.SetDefault("wormhole-state", defaultWormholeState)
	v.SetDefault("pyth-package", "")
	v.SetDefault("wormhole-package", "")
	v.SetDefault("pyth-update-fee", uint64(0))
	v.SetDefault("pool", defaultPoolDeepSui)
	v.SetDefault("pool-base", "deep")
	v.SetDefault("pool-quote", "sui")
	v.SetDefault("reward", "deep")
	for name, coin := range defaultCoins {
		v.SetDefault("coins."+name+".type", coin.typ)
		v.SetDefault("coins."+name+".scalar", coin.scalar)
		v.SetDefault("coins."+name+".decimals", coin.decimals)
		v.SetDefault("coins."+name+".feed", coin.feed)
	}
}

// DefaultAddresses returns the reference testnet address table.
func DefaultAddresses() (Addresses, error) {
	v := viper.New()
	setAddressDefaults(v)
	return loadAddresses(v)
}

func loadAddresses(v *viper.Viper) (Addresses, error) {
	var (
		out Addresses
		err error
	)
	required := []struct {
		key string
		dst *sui.Address
	}{
		{"lotus-package", &out.LotusPackage},
		{"deepbook-package", &out.DeepBookPackage},
		{"oracle-aggregator", &out.OracleAggregator},
		{"oracle-aggregator-cap", &out.OracleAggregatorCap},
		{"lotus-config", &out.LotusConfig},
		{"lotus-config-cap", &out.LotusConfigCap},
		{"pyth-state", &out.PythState},
		{"wormhole-state", &out.WormholeState},
		{"pool", &out.Pool},
	}
	for _, field := range required {
		if *field.dst, err = sui.ParseAddress(v.GetString(field.key)); err != nil {
			return Addresses{}, fmt.Errorf("%s: %w", field.key, err)
		}
	}
	if out.PythPackage, err = optionalAddress(v, "pyth-package"); err != nil {
		return Addresses{}, err
	}
	if out.WormholePackage, err = optionalAddress(v, "wormhole-package"); err != nil {
		return Addresses{}, err
	}
	out.PythUpdateFee = v.GetUint64("pyth-update-fee")
	out.PoolBase = strings.ToLower(v.GetString("pool-base"))
	out.PoolQuote = strings.ToLower(v.GetString("pool-quote"))
	out.Reward = strings.ToLower(v.GetString("reward"))

	out.Coins = make(map[string]Coin)
	for name := range coinNames(v) {
		prefix := "coins." + name + "."
		tag, err := sui.ParseTypeTag(v.GetString(prefix + "type"))
		if err != nil {
			return Addresses{}, fmt.Errorf("%stype: %w", prefix, err)
		}
		out.Coins[name] = Coin{
			Name:     name,
			Type:     tag,
			Scalar:   v.GetUint64(prefix + "scalar"),
			Decimals: uint8(v.GetUint(prefix + "decimals")),
			Feed:     strings.ToLower(v.GetString(prefix + "feed")),
		}
	}
	for _, name := range []string{out.PoolBase, out.PoolQuote, out.Reward} {
		if _, ok := out.Coins[name]; !ok {
			return Addresses{}, fmt.Errorf("coin %q is not configured", name)
		}
	}

	out.PriceInfoObjects, err = parsePriceInfoObjects(getStringSlice(v, "price-info-objects"))
	if err != nil {
		return Addresses{}, err
	}
	return out, nil
}

func coinNames(v *viper.Viper) map[string]struct{} {
	names := make(map[string]struct{}, len(defaultCoins))
	for name := range defaultCoins {
		names[name] = struct{}{}
	}
	for name := range v.GetStringMap("coins") {
		names[strings.ToLower(name)] = struct{}{}
	}
	return names
}

func optionalAddress(v *viper.Viper, key string) (sui.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return sui.Address{}, nil
	}
	addr, err := sui.ParseAddress(raw)
	if err != nil {
		return sui.Address{}, fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

// parsePriceInfoObjects reads `feed=object` pairs.
func parsePriceInfoObjects(pairs []string) (map[string]sui.Address, error) {
	out := make(map[string]sui.Address, len(pairs))
	for _, pair := range pairs {
		feed, obj, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("price-info-objects: expected feed=object, got %q", pair)
		}
		addr, err := sui.ParseAddress(strings.TrimSpace(obj))
		if err != nil {
			return nil, fmt.Errorf("price-info-objects: %w", err)
		}
		out[normalizeFeed(feed)] = addr
	}
	return out, nil
}

func normalizeFeed(feed string) string {
	feed = strings.ToLower(strings.TrimSpace(feed))
	if !strings.HasPrefix(feed, "0x") {
		feed = "0x" + feed
	}
	return feed
}

// Coin returns the named coin.
func (a Addresses) Coin(name string) (Coin, error) {
	coin, ok := a.Coins[strings.ToLower(name)]
	if !ok {
		return Coin{}, fmt.Errorf("unknown coin %q", name)
	}
	return coin, nil
}

// CoinByType finds a coin by its Move type.
func (a Addresses) CoinByType(tag sui.TypeTag) (Coin, bool) {
	for _, coin := range a.Coins {
		if coin.Type.Equal(tag) {
			return coin, true
		}
	}
	return Coin{}, false
}

// CoinNames lists the configured coins in name order.
func (a Addresses) CoinNames() []string {
	names := make([]string, 0, len(a.Coins))
	for name := range a.Coins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LPType is the vault share token type of the Lotus package.
func (a Addresses) LPType() sui.TypeTag {
	return sui.StructType(a.LotusPackage, "lp_token", "LP_TOKEN")
}

// Feeds returns the distinct price feed ids of the configured coins.
func (a Addresses) Feeds() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range a.CoinNames() {
		feed := a.Coins[name].Feed
		if feed == "" {
			continue
		}
		if _, ok := seen[feed]; ok {
			continue
		}
		seen[feed] = struct{}{}
		out = append(out, feed)
	}
	return out
}
