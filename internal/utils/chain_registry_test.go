package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainRegistryRoundTrip(t *testing.T) {
	r := NewChainRegistry()
	r.Register("BSC", 56)
	r.Register("polygon", 137)

	id, err := r.ChainIDByName("bsc")
	require.NoError(t, err)
	assert.Equal(t, int64(56), id)

	// Lookups are case-insensitive on the name side.
	id, err = r.ChainIDByName("Polygon")
	require.NoError(t, err)
	assert.Equal(t, int64(137), id)

	name, err := r.NameByChainID(56)
	require.NoError(t, err)
	assert.Equal(t, "bsc", name)

	_, err = r.ChainIDByName("solana")
	assert.Error(t, err)
	_, err = r.NameByChainID(999)
	assert.Error(t, err)
}

func TestChainIDFromSubject(t *testing.T) {
	GlobalChainRegistry.Register("arbitrum", 42161)

	id, err := ChainIDFromSubject("launchpad.arbitrum.LaunchFactory.TokenPurchase")
	require.NoError(t, err)
	assert.Equal(t, int64(42161), id)

	_, err = ChainIDFromSubject("launchpad.arbitrum")
	assert.Error(t, err)
	_, err = ChainIDFromSubject("launchpad.unknownchain.LaunchFactory.TokenPurchase")
	assert.Error(t, err)
}
