package timing

import "github.com/fabricpnr/corepnr/pkg/fabric"

// Budget holds a pre-assigned delay budget for one arc: the slack this
// arc is allowed to consume before it is considered critical.
type Budget struct {
	DelayBudget float64
}

// BudgetOracle is the Config.BudgetBased timing-cost variant described in
// spec §4.7/§6 and grounded on placer_prefine.cc's assign_budget/
// slack_redist_iter machinery: instead of querying a timing analyzer for
// criticality every iteration, slack is redistributed across arcs
// periodically and criticality is derived from how much of an arc's
// budget its predicted delay consumes.
type BudgetOracle struct {
	Underlying Oracle
	Budgets    map[fabric.NetId][]Budget
}

// NewBudgetOracle wraps an underlying delay source with per-arc budgets.
func NewBudgetOracle(underlying Oracle) *BudgetOracle {
	return &BudgetOracle{Underlying: underlying, Budgets: make(map[fabric.NetId][]Budget)}
}

// SetBudget installs the per-arc budgets for a net, sized to the net's
// user-pin count, typically called by a periodic "slack redistribution"
// pass external to the router/placer (spec: slack_redist_iter).
func (b *BudgetOracle) SetBudget(net fabric.NetId, budgets []Budget) {
	b.Budgets[net] = append([]Budget(nil), budgets...)
}

// Criticalities derives criticality from budget consumption: an arc
// whose predicted delay meets or exceeds its budget is fully critical
// (1.0); one using none of its budget is not critical (0.0).
func (b *BudgetOracle) Criticalities() map[fabric.NetId]NetCriticality {
	out := make(map[fabric.NetId]NetCriticality, len(b.Budgets))
	for net, budgets := range b.Budgets {
		crit := make([]float64, len(budgets))
		for i, bud := range budgets {
			delay := b.Underlying.PredictDelay(net, i).MaxDelay().Raw
			if bud.DelayBudget <= 0 {
				crit[i] = 1.0
				continue
			}
			c := delay / bud.DelayBudget
			if c > 1.0 {
				c = 1.0
			}
			if c < 0 {
				c = 0
			}
			crit[i] = c
		}
		out[net] = NetCriticality{Criticality: crit}
	}
	return out
}

func (b *BudgetOracle) PredictDelay(net fabric.NetId, user int) fabric.Delay {
	return b.Underlying.PredictDelay(net, user)
}

func (b *BudgetOracle) EstimateDelay(src, dst fabric.WireId) fabric.Delay {
	return b.Underlying.EstimateDelay(src, dst)
}
