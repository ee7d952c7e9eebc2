package model

import (
	"time"

	"vaultflow/internal/sui"
)

// Session carries the entity addresses discovered by earlier workflows.
// It is a value: workflows return an updated copy and never mutate the input.
type Session struct {
	Farm            sui.Address `json:"farm"`
	FarmCap         sui.Address `json:"farm_cap"`
	Vault           sui.Address `json:"vault"`
	VaultCreatorCap sui.Address `json:"vault_creator_cap"`
	VaultTradeCap   sui.Address `json:"vault_trade_cap"`
	VaultRegistered bool        `json:"vault_registered"`
	VaultClosed     bool        `json:"vault_closed"`
	IncentiveFarms  []string    `json:"incentive_farms,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
}

func (s Session) HasFarm() bool {
	return !s.Farm.IsZero() && !s.FarmCap.IsZero()
}

func (s Session) HasVault() bool {
	return !s.Vault.IsZero()
}

// HasIncentiveFarm reports whether a sub-farm for rewardType was added.
func (s Session) HasIncentiveFarm(rewardType string) bool {
	for _, t := range s.IncentiveFarms {
		if t == rewardType {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	out := s
	out.IncentiveFarms = append([]string(nil), s.IncentiveFarms...)
	out.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

// WithFarm records a newly created farm and its capability.
func (s Session) WithFarm(farm, farmCap sui.Address) Session {
	out := s.clone()
	out.Farm = farm
	out.FarmCap = farmCap
	out.IncentiveFarms = nil
	return out
}

// WithIncentiveFarm records an added incentive sub-farm.
func (s Session) WithIncentiveFarm(rewardType string) Session {
	out := s.clone()
	if !s.HasIncentiveFarm(rewardType) {
		out.IncentiveFarms = append(out.IncentiveFarms, rewardType)
	}
	return out
}

// WithVault records a newly created vault and its split capabilities.
func (s Session) WithVault(vault, creatorCap, tradeCap sui.Address) Session {
	out := s.clone()
	out.Vault = vault
	out.VaultCreatorCap = creatorCap
	out.VaultTradeCap = tradeCap
	out.VaultRegistered = false
	out.VaultClosed = false
	return out
}

// WithRegistration sets the vault's farm registration state.
func (s Session) WithRegistration(registered bool) Session {
	out := s.clone()
	out.VaultRegistered = registered
	return out
}

// WithVaultClosed marks the vault as closed and deregistered.
func (s Session) WithVaultClosed() Session {
	out := s.clone()
	out.VaultClosed = true
	out.VaultRegistered = false
	return out
}
