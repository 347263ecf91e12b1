package txauthor

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/chainmakers/multisigtx-cli/chain"
)

// SelectInputs picks outputs largest first until their total reaches
// target.  The result may overshoot the target.  Outputs of equal value keep
// their listed order so the selection is deterministic.
//
// A non-positive target selects nothing.  When the outputs cannot reach the
// target every output is returned and it is up to the caller to notice the
// shortfall.
func SelectInputs(utxos []chain.UnspentOutput,
	target btcutil.Amount) []chain.UnspentOutput {

	sorted := make([]chain.UnspentOutput, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	var selected []chain.UnspentOutput
	remaining := target
	for _, u := range sorted {
		if remaining <= 0 {
			break
		}
		selected = append(selected, u)
		remaining -= u.Value
	}

	return selected
}

// SumValues sums up the values of a set of unspent outputs.
func SumValues(utxos []chain.UnspentOutput) (total btcutil.Amount) {
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
