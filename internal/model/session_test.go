package model

import (
	"testing"

	"vaultflow/internal/sui"
)

func TestSessionUpdatesAreCopies(t *testing.T) {
	base := Session{}.WithFarm(sui.MustParseAddress("0x1"), sui.MustParseAddress("0x2"))
	withFarm := base.WithIncentiveFarm("0x36::deep::DEEP")

	if base.HasIncentiveFarm("0x36::deep::DEEP") {
		t.Fatalf("original session mutated")
	}
	if !withFarm.HasIncentiveFarm("0x36::deep::DEEP") {
		t.Fatalf("incentive farm not recorded")
	}

	again := withFarm.WithIncentiveFarm("0x36::deep::DEEP")
	if len(again.IncentiveFarms) != 1 {
		t.Fatalf("duplicate incentive farm: %v", again.IncentiveFarms)
	}
}

func TestSessionVaultLifecycle(t *testing.T) {
	s := Session{}.WithVault(sui.MustParseAddress("0x10"), sui.MustParseAddress("0x11"), sui.MustParseAddress("0x12"))
	if !s.HasVault() || s.VaultRegistered {
		t.Fatalf("fresh vault should exist unregistered: %+v", s)
	}

	registered := s.WithRegistration(true)
	if !registered.VaultRegistered || s.VaultRegistered {
		t.Fatalf("registration not applied as a copy")
	}

	closed := registered.WithVaultClosed()
	if closed.VaultRegistered || !closed.VaultClosed {
		t.Fatalf("closed vault must be deregistered: %+v", closed)
	}
	if !registered.VaultRegistered {
		t.Fatalf("closing mutated previous session")
	}
}
