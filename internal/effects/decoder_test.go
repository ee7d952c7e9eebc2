package effects

import (
	"errors"
	"testing"

	"vaultflow/internal/model"
	"vaultflow/internal/sui"
)

var pkg = sui.MustParseAddress("0xe8c606b96e6b84e7f2c4c25924cbfc6a30114ef3662f8daf5f9a0087c441ecde")

func created(id string, objType string, owner sui.Owner) model.ObjectChange {
	return model.ObjectChange{
		Type:       model.ChangeCreated,
		ObjectID:   sui.MustParseAddress(id),
		ObjectType: objType,
		Owner:      owner,
	}
}

func vaultChanges() []model.ObjectChange {
	lp := pkg.String() + "::lp_token::LP_TOKEN"
	return []model.ObjectChange{
		created("0x1", pkg.String()+"::lotus_db_vault::LotusDBVault<"+lp+">", sui.Owner{Kind: sui.OwnerShared, InitialSharedVersion: 3}),
		created("0x2", pkg.String()+"::lotus_db_vault::LotusDBVaultCap", sui.Owner{Kind: sui.OwnerAddress, Address: sui.MustParseAddress("0xaa")}),
		created("0x3", pkg.String()+"::lotus_db_vault::LotusDBVaultCap", sui.Owner{Kind: sui.OwnerShared, InitialSharedVersion: 3}),
		{Type: model.ChangeMutated, ObjectID: sui.MustParseAddress("0x4"), ObjectType: pkg.String() + "::lotus_lp_farm::LotusLPFarm<" + lp + ">"},
	}
}

func TestExtractSplitsCapsByOwnership(t *testing.T) {
	d := NewDecoder(pkg)
	got, err := d.Extract(vaultChanges(), Vault, VaultCreatorCap, VaultTradeCap)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got[Vault] != sui.MustParseAddress("0x1") {
		t.Fatalf("vault = %s", got[Vault])
	}
	if got[VaultCreatorCap] != sui.MustParseAddress("0x2") {
		t.Fatalf("creator cap = %s", got[VaultCreatorCap])
	}
	if got[VaultTradeCap] != sui.MustParseAddress("0x3") {
		t.Fatalf("trade cap = %s", got[VaultTradeCap])
	}
}

func TestExtractIgnoresMutatedObjects(t *testing.T) {
	d := NewDecoder(pkg)
	_, err := d.Extract(vaultChanges(), Farm)
	if !errors.Is(err, ErrEntityMissing) {
		t.Fatalf("expected missing farm, got %v", err)
	}
}

func TestExtractRejectsAmbiguousMatch(t *testing.T) {
	d := NewDecoder(pkg)
	changes := append(vaultChanges(), created("0x5", pkg.String()+"::lotus_db_vault::LotusDBVaultCap", sui.Owner{Kind: sui.OwnerAddress}))
	_, err := d.Extract(changes, VaultCreatorCap)
	if !errors.Is(err, ErrEntityAmbiguous) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
}

func TestExtractRejectsForeignPackage(t *testing.T) {
	d := NewDecoder(pkg)
	changes := []model.ObjectChange{
		created("0x9", "0x1234::lotus_lp_farm::LotusLPFarmCap", sui.Owner{Kind: sui.OwnerAddress}),
	}
	if _, err := d.Extract(changes, FarmCap); !errors.Is(err, ErrEntityMissing) {
		t.Fatalf("expected missing for foreign package, got %v", err)
	}
}
