package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"vaultflow/internal/sui"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envPrivateKey, "")
	t.Setenv(envPrivateKeyDelegate, "")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GasBudget != 100_000_000 {
		t.Fatalf("gas budget = %d", cfg.GasBudget)
	}
	if cfg.HermesURL != "https://hermes-beta.pyth.network" {
		t.Fatalf("hermes = %q", cfg.HermesURL)
	}
	a := cfg.Addresses
	if a.LotusPackage != sui.MustParseAddress(defaultLotusPackage) {
		t.Fatalf("lotus package = %s", a.LotusPackage)
	}
	deep, err := a.Coin("DEEP")
	if err != nil {
		t.Fatalf("coin: %v", err)
	}
	if deep.Scalar != 1_000_000 || deep.Decimals != 6 || deep.Feed != FeedDEEPUSD {
		t.Fatalf("unexpected deep coin: %+v", deep)
	}
	if got := a.LPType().String(); got != defaultLotusPackage+"::lp_token::LP_TOKEN" {
		t.Fatalf("lp type = %s", got)
	}
	if feeds := a.Feeds(); len(feeds) != 2 {
		t.Fatalf("expected two distinct feeds, got %v", feeds)
	}
}

func TestLoadOverridesFromFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfgPath := filepath.Join(dir, "vaultflow.yaml")
	content := "gas-budget: 5000\nprice-info-objects:\n  - \"50C67B3FD225DB8912A424DD4BAED60FFDDE625ED2FEAAF283724F9608FEA266=0x77\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PRIVATE_KEY=suiprivkey1abc\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	os.Unsetenv(envPrivateKey)
	t.Cleanup(func() { os.Unsetenv(envPrivateKey) })
	t.Setenv("VAULTFLOW_SETTLE_TIMEOUT", "3s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(cfgPath, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GasBudget != 5000 {
		t.Fatalf("gas budget = %d", cfg.GasBudget)
	}
	if cfg.SettleTimeout != 3*time.Second {
		t.Fatalf("settle timeout = %s", cfg.SettleTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %s", cfg.LogLevel)
	}
	if cfg.PrivateKey != "suiprivkey1abc" {
		t.Fatalf("private key not loaded from .env")
	}
	obj, ok := cfg.Addresses.PriceInfoObjects[FeedSUIUSD]
	if !ok || obj != sui.MustParseAddress("0x77") {
		t.Fatalf("price info objects = %v", cfg.Addresses.PriceInfoObjects)
	}
	if cfg.Redacted().PrivateKey != "<redacted>" {
		t.Fatalf("private key not redacted")
	}
}

func TestLoadRejectsInvalidAddress(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VAULTFLOW_POOL", "0xnothex")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

func TestParsePriceInfoObjects(t *testing.T) {
	if _, err := parsePriceInfoObjects([]string{"missing-separator"}); err == nil {
		t.Fatalf("expected error for malformed pair")
	}
}
