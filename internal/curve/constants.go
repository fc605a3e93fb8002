package curve

import "math/big"

// All amounts are 18-decimal fixed point base units.
var (
	// TotalSupply is the fixed supply minted per launch: 1,000,000,000 tokens.
	TotalSupply = mustParse("1000000000000000000000000000")

	// CurveSupply is the portion sold through the bonding curve: 800,000,000 tokens.
	// Reaching it triggers migration.
	CurveSupply = mustParse("800000000000000000000000000")

	// LiquidityReserve is the 200,000,000 tokens held back for the DEX pool.
	LiquidityReserve = new(big.Int).Sub(TotalSupply, CurveSupply)

	// DefaultVirtualEth seeds a fresh curve with 1 ETH of virtual liquidity.
	DefaultVirtualEth = mustParse("1000000000000000000")

	// DefaultVirtualTokens seeds the token side with the full TotalSupply.
	// Selling CurveSupply through the curve then leaves exactly
	// LiquidityReserve virtual tokens at the migration point; seeding with
	// CurveSupply instead would put the threshold at the curve's asymptote,
	// unreachable with finite ETH.
	DefaultVirtualTokens = new(big.Int).Set(TotalSupply)

	// PriceScale is the 1e18 fixed-point scale used by CurrentPrice.
	PriceScale = mustParse("1000000000000000000")

	// maxUint128 bounds every reserve, supply, and trade amount.
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

const (
	// PlatformFeeBps is the platform cut taken off every gross amount.
	PlatformFeeBps = 100

	// MaxCreatorFeeBps caps the per-launch creator fee.
	MaxCreatorFeeBps = 1000

	// BpsDenominator converts basis points to fractions.
	BpsDenominator = 10000
)

func mustParse(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("curve: bad constant " + s)
	}
	return v
}
