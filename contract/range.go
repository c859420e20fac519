package contract

import (
	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/template"
)

func unlockRange(dust amount.Amount) amount.Range {
	return amount.Between(dust, amount.MaxMoney)
}

// guaranteeRange returns the funding amounts a guarantee path can
// consume without losing value: the template's outputs, each of
// which must be acceptable to its destination, plus up to the fee
// margin.
func guaranteeRange(t *template.Template) (amount.Range, error) {
	sum := amount.Exactly(0)
	for i, out := range t.Outputs() {
		accept := out.Dest.AmountRange()
		r := amount.Exactly(out.Amount).Intersect(accept)
		if r.IsEmpty() {
			return amount.Range{}, errors.WithDetailf(ErrAmountInvariant,
				"output %d pays %d sats to a destination accepting %s", i, out.Amount, accept)
		}
		sum = sum.Add(r)
	}
	sum = sum.Add(amount.Between(0, t.FeeMargin())).Intersect(amount.Between(0, amount.MaxMoney))
	if sum.IsEmpty() {
		return amount.Range{}, errors.WithDetail(ErrAmountInvariant, "template total exceeds the money supply")
	}
	return sum, nil
}

// contractRange is the union of the guarantee path ranges. Unlock
// paths only count when there is no guarantee path.
func contractRange(paths []SpendingPath) amount.Range {
	var guaranteed, unlocked amount.Range
	var hasGuarantee bool
	for _, p := range paths {
		if p.Kind == KindGuarantee {
			hasGuarantee = true
			guaranteed = guaranteed.Union(p.Range)
		} else {
			unlocked = unlocked.Union(p.Range)
		}
	}
	if hasGuarantee {
		return guaranteed
	}
	return unlocked
}
