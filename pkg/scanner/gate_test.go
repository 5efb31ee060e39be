package scanner

import (
	"testing"

	"github.com/gantryci/gantry/pkg/types"
	"github.com/stretchr/testify/assert"
)

func defaultGate() map[types.Severity]bool {
	return map[types.Severity]bool{
		types.SeverityHigh:     true,
		types.SeverityCritical: true,
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		findings []types.Finding
		gate     map[types.Severity]bool
		pass     bool
		blocking int
	}{
		{
			name:     "no findings",
			findings: nil,
			gate:     defaultGate(),
			pass:     true,
		},
		{
			name: "only low and medium",
			findings: []types.Finding{
				{ID: "CVE-1", Severity: types.SeverityLow},
				{ID: "CVE-2", Severity: types.SeverityMedium},
			},
			gate: defaultGate(),
			pass: true,
		},
		{
			name: "one critical",
			findings: []types.Finding{
				{ID: "CVE-1", Severity: types.SeverityCritical},
			},
			gate:     defaultGate(),
			pass:     false,
			blocking: 1,
		},
		{
			name: "mixed severities",
			findings: []types.Finding{
				{ID: "CVE-1", Severity: types.SeverityLow},
				{ID: "CVE-2", Severity: types.SeverityHigh},
				{ID: "CVE-3", Severity: types.SeverityCritical},
			},
			gate:     defaultGate(),
			pass:     false,
			blocking: 2,
		},
		{
			name: "widened gate catches medium",
			findings: []types.Finding{
				{ID: "CVE-1", Severity: types.SeverityMedium},
			},
			gate: map[types.Severity]bool{
				types.SeverityMedium:   true,
				types.SeverityHigh:     true,
				types.SeverityCritical: true,
			},
			pass:     false,
			blocking: 1,
		},
		{
			name: "empty gate passes everything",
			findings: []types.Finding{
				{ID: "CVE-1", Severity: types.SeverityCritical},
			},
			gate: map[types.Severity]bool{},
			pass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &types.ScanResult{Findings: tt.findings}
			pass, blocking := Gate(result, tt.gate)
			assert.Equal(t, tt.pass, pass)
			assert.Len(t, blocking, tt.blocking)
		})
	}
}

func TestGateIsDeterministic(t *testing.T) {
	result := &types.ScanResult{Findings: []types.Finding{
		{ID: "CVE-1", Severity: types.SeverityHigh},
		{ID: "CVE-2", Severity: types.SeverityLow},
	}}
	gate := defaultGate()

	firstPass, firstBlocking := Gate(result, gate)
	for i := 0; i < 100; i++ {
		pass, blocking := Gate(result, gate)
		assert.Equal(t, firstPass, pass)
		assert.Equal(t, firstBlocking, blocking)
	}
}

func TestGateNilResult(t *testing.T) {
	pass, blocking := Gate(nil, defaultGate())
	assert.True(t, pass)
	assert.Nil(t, blocking)
}
