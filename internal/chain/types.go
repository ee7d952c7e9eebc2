package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"vaultflow/internal/model"
	"vaultflow/internal/sui"
)

// jsonUint64 accepts the fullnode's string-encoded integers as well as plain numbers.
type jsonUint64 uint64

func (v *jsonUint64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", data, err)
	}
	*v = jsonUint64(n)
	return nil
}

// rpcOwner decodes the tagged ownership forms, including the bare "Immutable" string.
type rpcOwner struct {
	sui.Owner
}

func (o *rpcOwner) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		o.Owner = sui.Owner{Kind: sui.OwnerKind(tag)}
		return nil
	}

	var raw struct {
		AddressOwner *sui.Address `json:"AddressOwner"`
		ObjectOwner  *sui.Address `json:"ObjectOwner"`
		Shared       *struct {
			InitialSharedVersion jsonUint64 `json:"initial_shared_version"`
		} `json:"Shared"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode owner: %w", err)
	}
	switch {
	case raw.AddressOwner != nil:
		o.Owner = sui.Owner{Kind: sui.OwnerAddress, Address: *raw.AddressOwner}
	case raw.ObjectOwner != nil:
		o.Owner = sui.Owner{Kind: sui.OwnerObject, Address: *raw.ObjectOwner}
	case raw.Shared != nil:
		o.Owner = sui.Owner{Kind: sui.OwnerShared, InitialSharedVersion: uint64(raw.Shared.InitialSharedVersion)}
	default:
		return fmt.Errorf("decode owner: unknown form %s", data)
	}
	return nil
}

type objectDataOptions struct {
	ShowOwner bool `json:"showOwner"`
	ShowType  bool `json:"showType"`
}

type objectData struct {
	ObjectID sui.Address `json:"objectId"`
	Version  jsonUint64  `json:"version"`
	Digest   string      `json:"digest"`
	Type     string      `json:"type"`
	Owner    *rpcOwner   `json:"owner"`
}

type objectResponse struct {
	Data  *objectData     `json:"data"`
	Error json.RawMessage `json:"error"`
}

type coinData struct {
	CoinType     string      `json:"coinType"`
	CoinObjectID sui.Address `json:"coinObjectId"`
	Version      jsonUint64  `json:"version"`
	Digest       string      `json:"digest"`
	Balance      jsonUint64  `json:"balance"`
}

type coinPage struct {
	Data        []coinData `json:"data"`
	NextCursor  *string    `json:"nextCursor"`
	HasNextPage bool       `json:"hasNextPage"`
}

type responseOptions struct {
	ShowEffects       bool `json:"showEffects"`
	ShowObjectChanges bool `json:"showObjectChanges,omitempty"`
}

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type transactionEffects struct {
	Status executionStatus `json:"status"`
}

type objectChange struct {
	Type       string      `json:"type"`
	ObjectID   sui.Address `json:"objectId"`
	ObjectType string      `json:"objectType"`
	Owner      *rpcOwner   `json:"owner"`
	Version    jsonUint64  `json:"version"`
}

type transactionResponse struct {
	Digest        string              `json:"digest"`
	Effects       *transactionEffects `json:"effects"`
	ObjectChanges []objectChange      `json:"objectChanges"`
	Errors        []string            `json:"errors"`
}

type devInspectResult struct {
	ReturnValues []returnValue `json:"returnValues"`
}

// returnValue is the `[bytes, type]` pair of a dev-inspect result.
type returnValue struct {
	Bytes []byte
	Type  string
}

func (r *returnValue) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode return value: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode return value: expected pair, got %d elements", len(pair))
	}
	var raw []int
	if err := json.Unmarshal(pair[0], &raw); err != nil {
		return fmt.Errorf("decode return bytes: %w", err)
	}
	r.Bytes = make([]byte, len(raw))
	for i, b := range raw {
		if b < 0 || b > 255 {
			return fmt.Errorf("decode return bytes: value %d out of range", b)
		}
		r.Bytes[i] = byte(b)
	}
	return json.Unmarshal(pair[1], &r.Type)
}

type devInspectResponse struct {
	Effects *transactionEffects `json:"effects"`
	Results []devInspectResult  `json:"results"`
	Error   string              `json:"error"`
}

func (r transactionResponse) status() executionStatus {
	if r.Effects == nil {
		return executionStatus{Status: model.StatusFailure, Error: "missing effects"}
	}
	return r.Effects.Status
}

func toSubmitResult(resp transactionResponse) model.SubmitResult {
	status := resp.status()
	out := model.SubmitResult{
		Digest: resp.Digest,
		Status: status.Status,
		Error:  status.Error,
	}
	for _, change := range resp.ObjectChanges {
		mc := model.ObjectChange{
			Type:       model.ObjectChangeType(change.Type),
			ObjectID:   change.ObjectID,
			ObjectType: change.ObjectType,
			Version:    uint64(change.Version),
		}
		if change.Owner != nil {
			mc.Owner = change.Owner.Owner
		}
		out.ObjectChanges = append(out.ObjectChanges, mc)
	}
	return out
}

func toCallResults(resp devInspectResponse) []model.CallResult {
	out := make([]model.CallResult, 0, len(resp.Results))
	for _, res := range resp.Results {
		cr := model.CallResult{ReturnValues: make([]model.ReturnValue, 0, len(res.ReturnValues))}
		for _, rv := range res.ReturnValues {
			cr.ReturnValues = append(cr.ReturnValues, model.ReturnValue{Bytes: rv.Bytes, Type: rv.Type})
		}
		out = append(out, cr)
	}
	return out
}
