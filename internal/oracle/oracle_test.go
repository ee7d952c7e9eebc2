package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

const (
	suiFeed  = "0x50c67b3fd225db8912a424dd4baed60ffdde625ed2feaaf283724f9608fea266"
	usdcFeed = "0x41f3625971ca2ed2263e78573fe5ce23e13d2558ed3f2e47ab0f84fb9e7ae722"
)

func TestHermesLatestUpdates(t *testing.T) {
	msg := BuildAccumulator([]byte("vaa"), []byte("updates"))
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/latest_vaas" {
			http.NotFound(w, r)
			return
		}
		gotIDs = r.URL.Query()["ids[]"]
		_ = json.NewEncoder(w).Encode([]string{base64.StdEncoding.EncodeToString(msg)})
	}))
	defer srv.Close()

	client := NewHermesClient(srv.URL+"/", time.Second)
	msgs, err := client.LatestUpdates(context.Background(), []string{suiFeed, usdcFeed})
	if err != nil {
		t.Fatalf("latest updates: %v", err)
	}
	if !reflect.DeepEqual(gotIDs, []string{suiFeed, usdcFeed}) {
		t.Fatalf("unexpected ids: %v", gotIDs)
	}
	if len(msgs) != 1 || !bytes.Equal(msgs[0], msg) {
		t.Fatalf("unexpected messages: %x", msgs)
	}
}

func TestHermesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown price feed", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHermesClient(srv.URL, time.Second).LatestUpdates(context.Background(), []string{suiFeed})
	if err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestExtractVAA(t *testing.T) {
	msg := BuildAccumulator([]byte{9, 8, 7}, []byte{1, 1, 1, 1})
	vaa, err := ExtractVAA(msg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !bytes.Equal(vaa, []byte{9, 8, 7}) {
		t.Fatalf("unexpected vaa: %x", vaa)
	}

	withTrailer := []byte{'P', 'N', 'A', 'U', 1, 0, 2, 0xee, 0xee, 0, 0, 1, 0x42}
	vaa, err = ExtractVAA(withTrailer)
	if err != nil {
		t.Fatalf("extract with trailer: %v", err)
	}
	if !bytes.Equal(vaa, []byte{0x42}) {
		t.Fatalf("unexpected vaa: %x", vaa)
	}

	if _, err := ExtractVAA([]byte("nope")); !errors.Is(err, ErrNotAccumulator) {
		t.Fatalf("expected ErrNotAccumulator, got %v", err)
	}
	if _, err := ExtractVAA(msg[:len(msg)-6]); err == nil {
		t.Fatalf("expected truncation error")
	}
}

type staticPrices struct {
	msgs [][]byte
	ids  []string
}

func (s *staticPrices) LatestUpdates(_ context.Context, ids []string) ([][]byte, error) {
	s.ids = ids
	return s.msgs, nil
}

func testConfig() Config {
	return Config{
		PythPackage:     sui.MustParseAddress("0xabc"),
		PythState:       sui.MustParseAddress("0x243759059f4c3111179da5878c12f68d612c21a8d54d85edc86164bb18be1c7c"),
		WormholePackage: sui.MustParseAddress("0xdef"),
		WormholeState:   sui.MustParseAddress("0x31358d198147da50db32eda2562951d53973a0c0ad5ed738e9b17d88b213d790"),
		BaseUpdateFee:   1,
		PriceInfoObjects: map[string]sui.Address{
			suiFeed:  sui.MustParseAddress("0x51"),
			usdcFeed: sui.MustParseAddress("0x52"),
		},
	}
}

func TestSubmitUpdateCommandShape(t *testing.T) {
	prices := &staticPrices{msgs: [][]byte{BuildAccumulator([]byte("vaa"), nil)}}
	u := NewUpdater(prices, testConfig(), nil)

	payload, err := u.FetchUpdateData(context.Background(), []string{suiFeed, suiFeed, usdcFeed})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !reflect.DeepEqual(prices.ids, []string{suiFeed, usdcFeed}) {
		t.Fatalf("feeds not deduplicated: %v", prices.ids)
	}

	tx := ptb.NewBuilder()
	args, err := u.SubmitUpdate(tx, payload, []string{suiFeed, suiFeed, usdcFeed})
	if err != nil {
		t.Fatalf("submit update: %v", err)
	}
	if len(args) != 3 || args[0] != args[1] || args[0] == args[2] {
		t.Fatalf("unexpected price args: %v", args)
	}

	built := tx.Transaction()
	var names []string
	for _, cmd := range built.Commands {
		if cmd.MoveCall != nil {
			names = append(names, cmd.MoveCall.Target.Name())
		} else {
			names = append(names, "split")
		}
	}
	want := []string{
		"vaa::parse_and_verify",
		"pyth::create_authenticated_price_infos_using_accumulator",
		"split",
		"pyth::update_single_price_feed",
		"pyth::update_single_price_feed",
		"hot_potato_vector::destroy",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("commands = %v", names)
	}
	if got := len(built.Commands[2].Amounts); got != 2 {
		t.Fatalf("expected one fee coin per unique feed, got %d", got)
	}
}

func TestSubmitUpdateRejectsUncoveredFeeds(t *testing.T) {
	u := NewUpdater(nil, testConfig(), nil)
	payload := Payload{Messages: [][]byte{BuildAccumulator([]byte("vaa"), nil)}, FeedIDs: []string{suiFeed}}

	tx := ptb.NewBuilder()
	if _, err := u.SubmitUpdate(tx, payload, []string{usdcFeed}); !errors.Is(err, ErrFeedNotInPayload) {
		t.Fatalf("expected ErrFeedNotInPayload, got %v", err)
	}
	if tx.Len() != 0 {
		t.Fatalf("rejected update must not append commands")
	}

	payload.FeedIDs = append(payload.FeedIDs, "0x01")
	if _, err := u.SubmitUpdate(tx, payload, []string{"0x01"}); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected ErrUnknownFeed, got %v", err)
	}
}

func TestNormalizeFeedID(t *testing.T) {
	if got := NormalizeFeedID(" ABCD "); got != "0xabcd" {
		t.Fatalf("normalize = %q", got)
	}
}
