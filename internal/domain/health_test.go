package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderHealthAvailableForHealthyAndDegraded(t *testing.T) {
	assert.True(t, ProviderHealth{Status: HealthHealthy}.Available())
	assert.True(t, ProviderHealth{Status: HealthDegraded}.Available())
	assert.False(t, ProviderHealth{Status: HealthUnavailable}.Available())
	assert.False(t, ProviderHealth{Status: HealthMaintenance}.Available())
}
