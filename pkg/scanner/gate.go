package scanner

import (
	"github.com/gantryci/gantry/pkg/types"
)

// Gate evaluates a scan result against the configured severity set. It is
// a pure function, separate from the scan call, so the decision is
// testable without a scanner backend. pass is false iff any finding's
// severity is in gateSet; blocking lists those findings.
func Gate(result *types.ScanResult, gateSet map[types.Severity]bool) (pass bool, blocking []types.Finding) {
	if result == nil {
		return true, nil
	}
	for _, f := range result.Findings {
		if gateSet[f.Severity] {
			blocking = append(blocking, f)
		}
	}
	return len(blocking) == 0, blocking
}
