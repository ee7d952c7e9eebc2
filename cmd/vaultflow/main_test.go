package main

import (
	"fmt"
	"testing"

	"vaultflow/internal/config"
	"vaultflow/internal/sui"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	_ = logger.Sync()
}

func TestValidateLiveNeedsPythAddresses(t *testing.T) {
	addrs, err := config.DefaultAddresses()
	if err != nil {
		t.Fatalf("default addresses: %v", err)
	}
	if err := validateLive(addrs); err == nil {
		t.Fatalf("expected error without pyth packages")
	}

	addrs.PythPackage = sui.MustParseAddress("0x8d97")
	addrs.WormholePackage = sui.MustParseAddress("0xf47329")
	if err := validateLive(addrs); err == nil {
		t.Fatalf("expected error without price info objects")
	}

	addrs.PriceInfoObjects = make(map[string]sui.Address)
	for i, feed := range addrs.Feeds() {
		addrs.PriceInfoObjects[feed] = sui.MustParseAddress(fmt.Sprintf("0x%x", i+1))
	}
	if err := validateLive(addrs); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseSignerRequiresKey(t *testing.T) {
	if _, err := parseSigner("PRIVATE_KEY", ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := parseSigner("PRIVATE_KEY", "suiprivkey1invalid"); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}
