package ticket

import "fmt"

// Kind is the workflow family a ticket gates.
type Kind int

const (
	CreateVault Kind = iota + 1
	UpdateWeight
	CloseVault
	TopUp
)

func (k Kind) String() string {
	switch k {
	case CreateVault:
		return "create-vault"
	case UpdateWeight:
		return "update-weight"
	case CloseVault:
		return "close-vault"
	case TopUp:
		return "top-up"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Step names an intermediate call consuming a ticket.
type Step string

const (
	StepRegister      Step = "register"
	StepApplyWeight   Step = "apply-weight"
	StepDeregister    Step = "deregister"
	StepPushIncentive Step = "push-incentive"
	StepRedeem        Step = "redeem"
)

// Transition is a registration change recorded by a closed ticket.
type Transition int

const (
	NoTransition Transition = iota
	Registered
	Deregistered
)

func (t Transition) String() string {
	switch t {
	case Registered:
		return "registered"
	case Deregistered:
		return "deregistered"
	default:
		return "none"
	}
}

type stepSpec struct {
	step       Step
	call       string
	repeatable bool
	// terminal steps consume the ticket and close it
	terminal bool
}

// protocol declares how one ticket kind is opened, used and closed.
// An empty destroy means the last step is terminal.
type protocol struct {
	opener     string
	steps      []stepSpec
	destroy    string
	transition Transition
}

var protocols = map[Kind]protocol{
	CreateVault: {
		opener: "lotus_lp_farm::create_incentivized_db_vault",
		steps: []stepSpec{
			{step: StepRegister, call: "lotus_lp_farm::add_incentivized_db_vault_to_td_farm_with_ticket"},
		},
		destroy:    "lotus_lp_farm::destroy_create_pool_ticket",
		transition: Registered,
	},
	UpdateWeight: {
		opener: "lotus_lp_farm::create_update_vault_weight_ticket",
		steps: []stepSpec{
			{step: StepApplyWeight, call: "lotus_lp_farm::update_vault_weight_with_ticket", repeatable: true},
		},
		destroy: "lotus_lp_farm::destroy_update_vault_weight_ticket",
	},
	CloseVault: {
		opener: "lotus_lp_farm::close_vault",
		steps: []stepSpec{
			{step: StepDeregister, call: "lotus_lp_farm::remove_farm_key_from_td_farm"},
		},
		destroy:    "lotus_lp_farm::destroy_close_vault_ticket",
		transition: Deregistered,
	},
	TopUp: {
		opener: "lotus_db_vault::new_top_up_ticket",
		steps: []stepSpec{
			{step: StepPushIncentive, call: "lotus_lp_farm::top_up_to_td_pool", repeatable: true},
			{step: StepRedeem, call: "lotus_db_vault::pooling_redeem_incentive", terminal: true},
		},
	},
}

func (p protocol) stepIndex(step Step) int {
	for i, s := range p.steps {
		if s.step == step {
			return i
		}
	}
	return -1
}
