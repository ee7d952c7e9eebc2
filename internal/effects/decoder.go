// Package effects recovers created entities from a committed transaction's
// object changes using declared extraction rules.
package effects

import (
	"errors"
	"fmt"

	"vaultflow/internal/model"
	"vaultflow/internal/sui"
)

var (
	ErrEntityMissing   = errors.New("expected entity not created")
	ErrEntityAmbiguous = errors.New("expected entity matched more than once")
	ErrUnknownKind     = errors.New("no extraction rule for entity kind")
)

// Kind enumerates the entities a workflow expects to create.
type Kind string

const (
	Farm            Kind = "farm"
	FarmCap         Kind = "farm_cap"
	Vault           Kind = "vault"
	VaultCreatorCap Kind = "vault_creator_cap"
	VaultTradeCap   Kind = "vault_trade_cap"
)

// Ownership is the ownership predicate of a rule.
type Ownership int

const (
	AnyOwner Ownership = iota
	AddressOwned
	Shared
)

func (o Ownership) matches(owner sui.Owner) bool {
	switch o {
	case AddressOwned:
		return owner.Kind == sui.OwnerAddress
	case Shared:
		return owner.Kind == sui.OwnerShared
	default:
		return true
	}
}

// Rule matches a created object by struct tag and ownership. A zero Package matches any package.
type Rule struct {
	Package sui.Address
	Module  string
	Name    string
	Owner   Ownership
}

func (r Rule) matches(change model.ObjectChange) bool {
	if change.Type != model.ChangeCreated || !r.Owner.matches(change.Owner) {
		return false
	}
	tag, err := sui.ParseTypeTag(change.ObjectType)
	if err != nil || !tag.IsStruct(r.Module, r.Name) {
		return false
	}
	return r.Package.IsZero() || tag.Struct.Address == r.Package
}

// Decoder maps entity kinds to rules.
type Decoder struct {
	rules map[Kind]Rule
}

// NewDecoder returns the rules for the Lotus package at pkg.
func NewDecoder(pkg sui.Address) *Decoder {
	return &Decoder{rules: map[Kind]Rule{
		Farm:            {Package: pkg, Module: "lotus_lp_farm", Name: "LotusLPFarm", Owner: Shared},
		FarmCap:         {Package: pkg, Module: "lotus_lp_farm", Name: "LotusLPFarmCap", Owner: AddressOwned},
		Vault:           {Package: pkg, Module: "lotus_db_vault", Name: "LotusDBVault", Owner: Shared},
		VaultCreatorCap: {Package: pkg, Module: "lotus_db_vault", Name: "LotusDBVaultCap", Owner: AddressOwned},
		VaultTradeCap:   {Package: pkg, Module: "lotus_db_vault", Name: "LotusDBVaultCap", Owner: Shared},
	}}
}

// Rule returns the rule for kind.
func (d *Decoder) Rule(kind Kind) (Rule, bool) {
	rule, ok := d.rules[kind]
	return rule, ok
}

// Entities is the extracted kind → object id map.
type Entities map[Kind]sui.Address

// Extract finds exactly one created object per requested kind.
func (d *Decoder) Extract(changes []model.ObjectChange, kinds ...Kind) (Entities, error) {
	out := make(Entities, len(kinds))
	for _, kind := range kinds {
		rule, ok := d.rules[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		}

		var found []sui.Address
		for _, change := range changes {
			if rule.matches(change) {
				found = append(found, change.ObjectID)
			}
		}
		switch len(found) {
		case 0:
			return nil, fmt.Errorf("%w: %s", ErrEntityMissing, kind)
		case 1:
			out[kind] = found[0]
		default:
			return nil, fmt.Errorf("%w: %s (%d objects)", ErrEntityAmbiguous, kind, len(found))
		}
	}
	return out, nil
}
