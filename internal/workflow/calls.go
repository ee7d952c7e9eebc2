package workflow

import (
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

const (
	moduleFarm   = "lotus_lp_farm"
	moduleVault  = "lotus_db_vault"
	moduleOracle = "oracle_ag"
	moduleConfig = "lotus_config"
)

func (c *Composer) target(module, function string) ptb.Target {
	return ptb.NewTarget(c.addrs.LotusPackage, module, function)
}

// types prefixes the LP token type to the given type arguments.
func (c *Composer) types(rest ...sui.TypeTag) []sui.TypeTag {
	return append([]sui.TypeTag{c.addrs.LPType()}, rest...)
}

// pairTypes is <LP, Base, Quote>.
func (c *Composer) pairTypes() []sui.TypeTag {
	return c.types(c.base.Type, c.quote.Type)
}

func (c *Composer) farmType() sui.TypeTag {
	return sui.StructType(c.addrs.LotusPackage, moduleFarm, "LotusLPFarm", c.addrs.LPType())
}

func (c *Composer) vaultType() sui.TypeTag {
	return sui.StructType(c.addrs.LotusPackage, moduleVault, "LotusDBVault", c.addrs.LPType())
}

// vaultCapType is not generic over the LP token.
func (c *Composer) vaultCapType() sui.TypeTag {
	return sui.StructType(c.addrs.LotusPackage, moduleVault, "LotusDBVaultCap")
}
