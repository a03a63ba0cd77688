package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzers(t *testing.T) {
	checks := analyzers()
	require.NotEmpty(t, checks)

	names := make(map[string]bool, len(checks))
	for _, a := range checks {
		assert.False(t, names[a.Name], "duplicate analyzer %s", a.Name)
		names[a.Name] = true
	}

	for _, want := range []string{"printf", "shadow", "errcheck", "bodyclose", "SA1000", "S1008", "ST1005"} {
		assert.True(t, names[want], "missing analyzer %s", want)
	}
	for name := range extraChecks {
		assert.True(t, names[name], "extra check %s not enabled", name)
	}
}
