package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsEvmAddress checks whether the string is a 20-byte EVM address, with or
// without the 0x prefix.
func IsEvmAddress(address string) bool {
	if address == "" {
		return false
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		address = "0x" + address
	}
	return common.IsHexAddress(address)
}

// IsZeroAddress reports whether the address is the EVM zero address.
func IsZeroAddress(address string) bool {
	if !IsEvmAddress(address) {
		return false
	}
	return common.HexToAddress(address) == (common.Address{})
}

// NormalizeAddress lowercases a hex address and guarantees the 0x prefix.
// Allow-list lookups and launch-id hashing both depend on this canonical
// form, so every inbound address goes through here first.
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		address = "0x" + address
	}
	return strings.ToLower(address)
}
