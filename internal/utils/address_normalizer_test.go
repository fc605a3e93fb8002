package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEvmAddress(t *testing.T) {
	assert.True(t, IsEvmAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66"))
	assert.True(t, IsEvmAddress("742d35Cc6634C0532925a3b0F26750C66d78EB66"))
	assert.False(t, IsEvmAddress(""))
	assert.False(t, IsEvmAddress("0x1234"))
	assert.False(t, IsEvmAddress("0xZZZd35Cc6634C0532925a3b0F26750C66d78EB66"))
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66"))
	assert.False(t, IsZeroAddress("not an address"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0x742d35cc6634c0532925a3b0f26750c66d78eb66", NormalizeAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66"))
	assert.Equal(t, "0x742d35cc6634c0532925a3b0f26750c66d78eb66", NormalizeAddress("742d35Cc6634C0532925a3b0F26750C66d78EB66"))
	assert.Equal(t, "", NormalizeAddress(""))
}
