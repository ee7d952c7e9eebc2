package ticket

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

var lotus = sui.MustParseAddress("0xe8c606b96e6b84e7f2c4c25924cbfc6a30114ef3662f8daf5f9a0087c441ecde")

func target(name string) ptb.Target {
	parts := strings.SplitN(name, "::", 2)
	return ptb.NewTarget(lotus, parts[0], parts[1])
}

func farmSession() model.Session {
	return model.Session{}.WithFarm(sui.MustParseAddress("0xf1"), sui.MustParseAddress("0xf2"))
}

func vaultSession(registered bool) model.Session {
	s := farmSession().WithVault(sui.MustParseAddress("0xa1"), sui.MustParseAddress("0xa2"), sui.MustParseAddress("0xa3"))
	return s.WithRegistration(registered)
}

func opener(name string) Opener {
	return func(tx *ptb.Builder) (ptb.Argument, error) {
		res := tx.MoveCall(target(name), nil, tx.Object(sui.MustParseAddress("0xf1")))
		return res.Arg(), nil
	}
}

func step(name string) StepCall {
	return func(tx *ptb.Builder, ticket ptb.Argument) (ptb.Result, error) {
		return tx.MoveCall(target(name), nil, tx.Object(sui.MustParseAddress("0xf1")), ticket, tx.Clock()), nil
	}
}

func destroy(name string) Destroyer {
	return func(tx *ptb.Builder, ticket ptb.Argument) error {
		tx.MoveCall(target(name), nil, tx.Object(sui.MustParseAddress("0xf1")), ticket)
		return nil
	}
}

func TestCreateVaultProtocol(t *testing.T) {
	u := NewUnit(farmSession())
	createCall := func(tx *ptb.Builder) (ptb.Argument, error) {
		res := tx.MoveCall(target("lotus_lp_farm::create_incentivized_db_vault"), nil, tx.Object(sui.MustParseAddress("0xf1")))
		return res.Nested(3), nil
	}
	tk, err := u.Open(CreateVault, createCall)
	require.NoError(t, err)
	require.Equal(t, CreateVault, tk.Kind())
	require.Equal(t, sui.MustParseAddress("0xf1"), tk.Entity())

	_, err = u.Use(tk, StepRegister, step("lotus_lp_farm::add_incentivized_db_vault_to_td_farm_with_ticket"))
	require.NoError(t, err)
	require.NoError(t, u.Close(tk, destroy("lotus_lp_farm::destroy_create_pool_ticket")))
	require.True(t, tk.Closed())

	tx, err := u.Seal()
	require.NoError(t, err)
	require.Len(t, tx.Commands, 3)
	require.Equal(t, []Effect{{Kind: CreateVault, Entity: sui.MustParseAddress("0xf1"), Transition: Registered}}, u.Effects())

	s := vaultSession(false)
	require.True(t, Apply(s, u.Effects()).VaultRegistered)
}

func TestOpenRequiresEntityState(t *testing.T) {
	cases := []struct {
		name    string
		session model.Session
		kind    Kind
	}{
		{"create vault without farm", model.Session{}, CreateVault},
		{"update weight unregistered", vaultSession(false), UpdateWeight},
		{"close unregistered", vaultSession(false), CloseVault},
		{"top up without vault", farmSession(), TopUp},
		{"top up closed vault", vaultSession(true).WithVaultClosed(), TopUp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := NewUnit(tc.session)
			_, err := u.Open(tc.kind, opener(protocols[tc.kind].opener))
			require.ErrorIs(t, err, ErrEntityState)
			require.Zero(t, u.Builder().Len())
		})
	}
}

func TestUseRejectsUndeclaredStep(t *testing.T) {
	u := NewUnit(vaultSession(true))
	tk, err := u.Open(UpdateWeight, opener("lotus_lp_farm::create_update_vault_weight_ticket"))
	require.NoError(t, err)

	_, err = u.Use(tk, StepRegister, step("lotus_lp_farm::add_incentivized_db_vault_to_td_farm_with_ticket"))
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestCloseRequiresMandatorySteps(t *testing.T) {
	u := NewUnit(vaultSession(true))
	tk, err := u.Open(CloseVault, opener("lotus_lp_farm::close_vault"))
	require.NoError(t, err)

	err = u.Close(tk, destroy("lotus_lp_farm::destroy_close_vault_ticket"))
	require.ErrorIs(t, err, ErrStepsPending)

	_, err = u.Seal()
	require.ErrorIs(t, err, ErrTicketLeaked)
}

func TestStepMustConsumeTicket(t *testing.T) {
	u := NewUnit(vaultSession(true))
	tk, err := u.Open(CloseVault, opener("lotus_lp_farm::close_vault"))
	require.NoError(t, err)

	bypass := func(tx *ptb.Builder, _ ptb.Argument) (ptb.Result, error) {
		return tx.MoveCall(target("lotus_lp_farm::remove_farm_key_from_td_farm"), nil, tx.Object(sui.MustParseAddress("0xf1"))), nil
	}
	_, err = u.Use(tk, StepDeregister, bypass)
	require.ErrorIs(t, err, ErrStepCall)

	_, err = u.Use(tk, StepDeregister, step("lotus_lp_farm::destroy_close_vault_ticket"))
	require.ErrorIs(t, err, ErrStepCall)
}

func TestTopUpClosedByRedeem(t *testing.T) {
	u := NewUnit(vaultSession(true))
	tk, err := u.Open(TopUp, opener("lotus_db_vault::new_top_up_ticket"))
	require.NoError(t, err)

	_, err = u.Use(tk, StepRedeem, step("lotus_db_vault::pooling_redeem_incentive"))
	require.ErrorIs(t, err, ErrStepOrder)

	for i := 0; i < 2; i++ {
		_, err = u.Use(tk, StepPushIncentive, step("lotus_lp_farm::top_up_to_td_pool"))
		require.NoError(t, err)
	}
	require.ErrorIs(t, u.Close(tk, destroy("lotus_db_vault::destroy_top_up_ticket")), ErrKindMismatch)

	_, err = u.Use(tk, StepRedeem, step("lotus_db_vault::pooling_redeem_incentive"))
	require.NoError(t, err)
	require.True(t, tk.Closed())

	_, err = u.Use(tk, StepPushIncentive, step("lotus_lp_farm::top_up_to_td_pool"))
	require.ErrorIs(t, err, ErrTicketClosed)

	_, err = u.Seal()
	require.NoError(t, err)
	require.Empty(t, u.Effects())
}

func TestNonRepeatableStepCannotRepeat(t *testing.T) {
	u := NewUnit(farmSession())
	tk, err := u.Open(CreateVault, opener("lotus_lp_farm::create_incentivized_db_vault"))
	require.NoError(t, err)

	register := step("lotus_lp_farm::add_incentivized_db_vault_to_td_farm_with_ticket")
	_, err = u.Use(tk, StepRegister, register)
	require.NoError(t, err)
	_, err = u.Use(tk, StepRegister, register)
	require.ErrorIs(t, err, ErrStepOrder)
}

func TestForeignTicketRejected(t *testing.T) {
	a := NewUnit(vaultSession(true))
	b := NewUnit(vaultSession(true))
	tk, err := a.Open(UpdateWeight, opener("lotus_lp_farm::create_update_vault_weight_ticket"))
	require.NoError(t, err)

	_, err = b.Use(tk, StepApplyWeight, step("lotus_lp_farm::update_vault_weight_with_ticket"))
	require.ErrorIs(t, err, ErrForeignTicket)
	require.ErrorIs(t, b.Close(tk, destroy("lotus_lp_farm::destroy_update_vault_weight_ticket")), ErrForeignTicket)
}

func TestOpenerMustProduceTicket(t *testing.T) {
	u := NewUnit(vaultSession(true))
	_, err := u.Open(UpdateWeight, opener("lotus_lp_farm::close_vault"))
	require.ErrorIs(t, err, ErrStepCall)

	_, err = u.Open(UpdateWeight, func(tx *ptb.Builder) (ptb.Argument, error) {
		return tx.Object(sui.MustParseAddress("0xdead")), nil
	})
	require.ErrorIs(t, err, ErrStepCall)
}

func TestSealedUnitRejectsOperations(t *testing.T) {
	u := NewUnit(vaultSession(true))
	_, err := u.Seal()
	require.NoError(t, err)

	_, err = u.Open(TopUp, opener("lotus_db_vault::new_top_up_ticket"))
	require.ErrorIs(t, err, ErrUnitSealed)
	_, err = u.Seal()
	require.ErrorIs(t, err, ErrUnitSealed)
}

func TestClosedVaultBlocksLaterTicketsInUnit(t *testing.T) {
	u := NewUnit(vaultSession(true))
	tk, err := u.Open(CloseVault, opener("lotus_lp_farm::close_vault"))
	require.NoError(t, err)
	_, err = u.Use(tk, StepDeregister, step("lotus_lp_farm::remove_farm_key_from_td_farm"))
	require.NoError(t, err)
	require.NoError(t, u.Close(tk, destroy("lotus_lp_farm::destroy_close_vault_ticket")))

	_, err = u.Open(TopUp, opener("lotus_db_vault::new_top_up_ticket"))
	require.ErrorIs(t, err, ErrEntityState)

	closed := Apply(vaultSession(true), u.Effects())
	require.True(t, closed.VaultClosed)
	require.False(t, closed.VaultRegistered)
}
