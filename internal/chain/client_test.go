package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcHandler func(params []json.RawMessage) (interface{}, error)

func fakeNode(t *testing.T, handlers map[string]rpcHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		handler, ok := handlers[req.Method]
		if !ok {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found: " + req.Method}
		} else if result, err := handler(req.Params); err != nil {
			resp["error"] = map[string]interface{}{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

var (
	sharedFarm = sui.MustParseAddress("0xf1")
	ownedCap   = sui.MustParseAddress("0xf2")
	gasCoinA   = sui.MustParseAddress("0xc1")
	gasCoinB   = sui.MustParseAddress("0xc2")
	objDigest  = sui.Digest{1, 2, 3}
)

func testSigner(t *testing.T) *sui.Keypair {
	t.Helper()
	kp, err := sui.NewKeypairFromSeed(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	return kp
}

func baseHandlers() map[string]rpcHandler {
	return map[string]rpcHandler{
		"suix_getReferenceGasPrice": func([]json.RawMessage) (interface{}, error) {
			return "750", nil
		},
		"sui_multiGetObjects": func(params []json.RawMessage) (interface{}, error) {
			var ids []string
			if err := json.Unmarshal(params[0], &ids); err != nil {
				return nil, err
			}
			out := make([]interface{}, 0, len(ids))
			for _, id := range ids {
				switch id {
				case sharedFarm.String():
					out = append(out, map[string]interface{}{"data": map[string]interface{}{
						"objectId": id, "version": "12", "digest": objDigest.String(),
						"owner": map[string]interface{}{"Shared": map[string]interface{}{"initial_shared_version": 9}},
					}})
				case ownedCap.String(), sui.ClockObjectID.String():
					out = append(out, map[string]interface{}{"data": map[string]interface{}{
						"objectId": id, "version": "4", "digest": objDigest.String(),
						"owner": map[string]interface{}{"AddressOwner": "0xaa"},
					}})
				default:
					out = append(out, map[string]interface{}{"error": map[string]interface{}{"code": "notExists"}})
				}
			}
			return out, nil
		},
		"suix_getCoins": func([]json.RawMessage) (interface{}, error) {
			return map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"coinType": suiCoinType, "coinObjectId": gasCoinA.String(), "version": "3", "digest": objDigest.String(), "balance": "40000000"},
					map[string]interface{}{"coinType": suiCoinType, "coinObjectId": gasCoinB.String(), "version": "5", "digest": objDigest.String(), "balance": "90000000"},
				},
				"hasNextPage": false,
			}, nil
		},
	}
}

func sampleTx() *ptb.Transaction {
	b := ptb.NewBuilder()
	target := ptb.NewTarget(sui.MustParseAddress("0xe8"), "lotus_lp_farm", "set_farm_unlock_rate")
	b.MoveCall(target, nil, b.Object(sharedFarm), b.Object(ownedCap), b.PureU64(10), b.Clock())
	return b.Transaction()
}

func TestSubmitSignsAndDecodesEffects(t *testing.T) {
	signer := testSigner(t)
	handlers := baseHandlers()

	var (
		mu      sync.Mutex
		txBytes []byte
	)
	handlers["sui_executeTransactionBlock"] = func(params []json.RawMessage) (interface{}, error) {
		var encoded string
		var sigs []string
		if err := json.Unmarshal(params[0], &encoded); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(params[1], &sigs); err != nil {
			return nil, err
		}
		raw, _ := base64.StdEncoding.DecodeString(encoded)
		sig, _ := base64.StdEncoding.DecodeString(sigs[0])
		if len(sig) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || sig[0] != 0 {
			return nil, errors.New("bad signature layout")
		}
		digest := sui.TransactionSigningDigest(raw)
		if !ed25519.Verify(sig[1+ed25519.SignatureSize:], digest[:], sig[1:1+ed25519.SignatureSize]) {
			return nil, errors.New("signature does not verify")
		}
		mu.Lock()
		txBytes = raw
		mu.Unlock()
		return map[string]interface{}{
			"digest":  "9aXb",
			"effects": map[string]interface{}{"status": map[string]interface{}{"status": "success"}},
			"objectChanges": []interface{}{
				map[string]interface{}{"type": "created", "objectId": "0xbb", "objectType": "0x2::coin::Coin<0x2::sui::SUI>", "owner": map[string]interface{}{"AddressOwner": "0xaa"}, "version": "13"},
				map[string]interface{}{"type": "mutated", "objectId": sharedFarm.String(), "objectType": "0xe8::lotus_lp_farm::LotusLPFarm", "owner": map[string]interface{}{"Shared": map[string]interface{}{"initial_shared_version": 9}}, "version": "13"},
			},
		}, nil
	}

	sub := NewSubmitter(fakeNode(t, handlers), Config{}, nil)
	tx := sampleTx()
	result, err := sub.Submit(context.Background(), signer, tx, 100_000_000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Succeeded() || result.Digest != "9aXb" {
		t.Fatalf("unexpected result: %+v", result)
	}
	created := result.Created()
	if len(created) != 1 || created[0].ObjectID != sui.MustParseAddress("0xbb") || created[0].Owner.Kind != sui.OwnerAddress {
		t.Fatalf("unexpected created: %+v", created)
	}
	if result.ObjectChanges[1].Owner.InitialSharedVersion != 9 {
		t.Fatalf("shared owner not decoded: %+v", result.ObjectChanges[1].Owner)
	}

	farmArg := tx.Inputs[0].Object.Arg
	if farmArg == nil || farmArg.Kind != ptb.ObjectShared || farmArg.InitialSharedVersion != 9 || !farmArg.Mutable {
		t.Fatalf("farm not resolved as mutable shared: %+v", farmArg)
	}
	capArg := tx.Inputs[1].Object.Arg
	if capArg == nil || capArg.Kind != ptb.ObjectImmOrOwned || capArg.Ref.Version != 4 {
		t.Fatalf("cap not resolved as owned: %+v", capArg)
	}

	mu.Lock()
	defer mu.Unlock()
	want, err := ptb.TransactionData{
		Tx:     tx,
		Sender: signer.Address(),
		Gas: ptb.GasData{
			Payment: []sui.ObjectRef{
				{ObjectID: gasCoinB, Version: 5, Digest: objDigest},
				{ObjectID: gasCoinA, Version: 3, Digest: objDigest},
			},
			Owner:  signer.Address(),
			Price:  750,
			Budget: 100_000_000,
		},
	}.MarshalBCS()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(txBytes, want) {
		t.Fatalf("submitted bytes differ from expected transaction data")
	}
}

func TestSubmitReportsExecutionFailure(t *testing.T) {
	handlers := baseHandlers()
	handlers["sui_executeTransactionBlock"] = func([]json.RawMessage) (interface{}, error) {
		return map[string]interface{}{
			"digest":  "Fail1",
			"effects": map[string]interface{}{"status": map[string]interface{}{"status": "failure", "error": "MoveAbort(7)"}},
		}, nil
	}
	sub := NewSubmitter(fakeNode(t, handlers), Config{}, nil)

	result, err := sub.Submit(context.Background(), testSigner(t), sampleTx(), 100_000_000)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected execution failure, got %v", err)
	}
	if result.Digest != "Fail1" || result.Error != "MoveAbort(7)" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitMissingObjectIsSubmissionError(t *testing.T) {
	sub := NewSubmitter(fakeNode(t, baseHandlers()), Config{}, nil)
	b := ptb.NewBuilder()
	b.MoveCall(ptb.NewTarget(sui.MustParseAddress("0xe8"), "m", "f"), nil, b.Object(sui.MustParseAddress("0xdead")))

	_, err := sub.Submit(context.Background(), testSigner(t), b.Transaction(), 100_000_000)
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestSubmitInsufficientGas(t *testing.T) {
	sub := NewSubmitter(fakeNode(t, baseHandlers()), Config{}, nil)
	_, err := sub.Submit(context.Background(), testSigner(t), sampleTx(), 500_000_000)
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestInspectDecodesReturnValues(t *testing.T) {
	handlers := baseHandlers()
	handlers["sui_devInspectTransactionBlock"] = func(params []json.RawMessage) (interface{}, error) {
		return map[string]interface{}{
			"effects": map[string]interface{}{"status": map[string]interface{}{"status": "success"}},
			"results": []interface{}{
				map[string]interface{}{"returnValues": []interface{}{
					[]interface{}{[]int{64, 66, 15, 0, 0, 0, 0, 0}, "u64"},
				}},
			},
		}, nil
	}
	sub := NewSubmitter(fakeNode(t, handlers), Config{}, nil)

	results, err := sub.Inspect(context.Background(), sui.MustParseAddress("0xaa"), sampleTx())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(results) != 1 || len(results[0].ReturnValues) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	rv := results[0].ReturnValues[0]
	if rv.Type != "u64" || !bytes.Equal(rv.Bytes, []byte{64, 66, 15, 0, 0, 0, 0, 0}) {
		t.Fatalf("unexpected return value: %+v", rv)
	}
}

func TestInspectFailureIsDistinct(t *testing.T) {
	handlers := baseHandlers()
	handlers["sui_devInspectTransactionBlock"] = func([]json.RawMessage) (interface{}, error) {
		return map[string]interface{}{
			"effects": map[string]interface{}{"status": map[string]interface{}{"status": "failure", "error": "abort"}},
			"error":   "abort",
		}, nil
	}
	sub := NewSubmitter(fakeNode(t, handlers), Config{}, nil)

	results, err := sub.Inspect(context.Background(), sui.MustParseAddress("0xaa"), sampleTx())
	if !errors.Is(err, ErrInspection) {
		t.Fatalf("expected inspection error, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestWaitForConfirmationPolls(t *testing.T) {
	handlers := baseHandlers()
	var (
		mu    sync.Mutex
		calls int
	)
	handlers["sui_getTransactionBlock"] = func([]json.RawMessage) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return nil, errors.New("Could not find the referenced transaction")
		}
		return map[string]interface{}{
			"digest":  "done",
			"effects": map[string]interface{}{"status": map[string]interface{}{"status": "success"}},
		}, nil
	}
	sub := NewSubmitter(fakeNode(t, handlers), Config{PollInterval: 5 * time.Millisecond}, nil)

	result, err := sub.WaitForConfirmation(context.Background(), "done", 2*time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if result.Status != model.StatusSuccess || calls != 3 {
		t.Fatalf("unexpected result %+v after %d calls", result, calls)
	}
}

func TestCoinsCoverAmount(t *testing.T) {
	sub := NewSubmitter(fakeNode(t, baseHandlers()), Config{}, nil)

	ids, err := sub.Coins(context.Background(), sui.MustParseAddress("0xaa"), suiCoinType, 50_000_000)
	if err != nil {
		t.Fatalf("coins: %v", err)
	}
	if len(ids) != 1 || ids[0] != gasCoinB {
		t.Fatalf("unexpected coins: %v", ids)
	}

	if _, err := sub.Coins(context.Background(), sui.MustParseAddress("0xaa"), suiCoinType, 200_000_000); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
}

func TestOwnerForms(t *testing.T) {
	cases := map[string]sui.Owner{
		`"Immutable"`:                                {Kind: sui.OwnerImmutable},
		`{"AddressOwner":"0x1"}`:                     {Kind: sui.OwnerAddress, Address: sui.MustParseAddress("0x1")},
		`{"ObjectOwner":"0x2"}`:                      {Kind: sui.OwnerObject, Address: sui.MustParseAddress("0x2")},
		`{"Shared":{"initial_shared_version":"44"}}`: {Kind: sui.OwnerShared, InitialSharedVersion: 44},
	}
	for input, want := range cases {
		var got rpcOwner
		if err := json.Unmarshal([]byte(input), &got); err != nil {
			t.Fatalf("decode %s: %v", input, err)
		}
		if got.Owner != want {
			t.Fatalf("decode %s: got %+v want %+v", input, got.Owner, want)
		}
	}

	var bad rpcOwner
	if err := json.Unmarshal([]byte(`{"Weird":1}`), &bad); err == nil {
		t.Fatalf("expected error for unknown owner form")
	}
}
