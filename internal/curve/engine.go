package curve

import (
	"math/big"
)

// State is a snapshot of one chain-local bonding curve. The engine never
// mutates a snapshot in place: every Apply* call returns a fresh State so the
// caller can run all checks before committing any effect.
type State struct {
	VirtualEth    *big.Int
	VirtualTokens *big.Int
	TotalSupply   *big.Int
	CreatorFeeBps uint32
}

// NewState returns the launch-time curve state for a given creator fee.
func NewState(creatorFeeBps uint32) (State, error) {
	if creatorFeeBps > MaxCreatorFeeBps {
		return State{}, ErrInvalidFee
	}
	return State{
		VirtualEth:    new(big.Int).Set(DefaultVirtualEth),
		VirtualTokens: new(big.Int).Set(DefaultVirtualTokens),
		TotalSupply:   big.NewInt(0),
		CreatorFeeBps: creatorFeeBps,
	}, nil
}

// Clone deep-copies a snapshot.
func (s State) Clone() State {
	return State{
		VirtualEth:    new(big.Int).Set(s.VirtualEth),
		VirtualTokens: new(big.Int).Set(s.VirtualTokens),
		TotalSupply:   new(big.Int).Set(s.TotalSupply),
		CreatorFeeBps: s.CreatorFeeBps,
	}
}

// BuyResult is the outcome of ApplyBuy. Refund is non-zero only when the buy
// was clamped at the supply ceiling and the trader overpaid for the remainder.
type BuyResult struct {
	State              State
	TokensOut          *big.Int
	EthForCurve        *big.Int
	PlatformFee        *big.Int
	CreatorFee         *big.Int
	Refund             *big.Int
	MigrationTriggered bool
}

// SellResult is the outcome of ApplySell. EthOut is net of the platform fee;
// no creator fee applies to sells.
type SellResult struct {
	State       State
	EthOut      *big.Int
	PlatformFee *big.Int
}

// QuoteBuy returns the tokens received for ethIn against the current
// reserves: ceilDiv(virtualTokens * ethIn, virtualEth + ethIn).
func QuoteBuy(s State, ethIn *big.Int) (*big.Int, error) {
	if ethIn == nil || ethIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !inU128(ethIn) {
		return nil, ErrArithmetic
	}
	denom := new(big.Int).Add(s.VirtualEth, ethIn)
	if denom.Sign() == 0 || !inU128(denom) {
		return nil, ErrArithmetic
	}
	num := new(big.Int).Mul(s.VirtualTokens, ethIn)
	return ceilDiv(num, denom), nil
}

// QuoteSell returns the ETH received for tokensIn, capped at the virtual ETH
// reserve (a sell can never drain more ETH than the curve holds).
func QuoteSell(s State, tokensIn *big.Int) (*big.Int, error) {
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !inU128(tokensIn) {
		return nil, ErrArithmetic
	}
	denom := new(big.Int).Add(s.VirtualTokens, tokensIn)
	if denom.Sign() == 0 || !inU128(denom) {
		return nil, ErrArithmetic
	}
	num := new(big.Int).Mul(s.VirtualEth, tokensIn)
	out := ceilDiv(num, denom)
	if out.Cmp(s.VirtualEth) > 0 {
		out.Set(s.VirtualEth)
	}
	return out, nil
}

// CurrentPrice returns the spot price scaled by 1e18:
// virtualEth * 1e18 / virtualTokens.
func CurrentPrice(s State) (*big.Int, error) {
	if s.VirtualTokens == nil || s.VirtualTokens.Sign() == 0 {
		return nil, ErrArithmetic
	}
	num := new(big.Int).Mul(s.VirtualEth, PriceScale)
	return num.Div(num, s.VirtualTokens), nil
}

// CalculateEthIn is the inverse buy formula: the exact curve-side ETH needed
// to receive tokensOut, ceilDiv(virtualEth * tokensOut, virtualTokens - tokensOut).
func CalculateEthIn(s State, tokensOut *big.Int) (*big.Int, error) {
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	denom := new(big.Int).Sub(s.VirtualTokens, tokensOut)
	if denom.Sign() <= 0 {
		return nil, ErrArithmetic
	}
	num := new(big.Int).Mul(s.VirtualEth, tokensOut)
	return ceilDiv(num, denom), nil
}

// ApplyBuy carves the platform and creator fees out of ethIn, quotes the
// remainder against the curve, clamps at the CurveSupply headroom, and
// returns the post-trade state. Reserves move by curve-side amounts only;
// fees never enter the formula. maxSlippageBps == 0 disables the realized
// slippage check (minTokensOut still applies).
func ApplyBuy(s State, ethIn, minTokensOut *big.Int, maxSlippageBps uint32) (*BuyResult, error) {
	if ethIn == nil || ethIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !inU128(ethIn) {
		return nil, ErrArithmetic
	}

	headroom := new(big.Int).Sub(CurveSupply, s.TotalSupply)
	if headroom.Sign() <= 0 {
		return nil, ErrSupplyExhausted
	}

	platformFee := feeOf(ethIn, PlatformFeeBps)
	creatorFee := feeOf(ethIn, s.CreatorFeeBps)
	ethForCurve := new(big.Int).Sub(ethIn, platformFee)
	ethForCurve.Sub(ethForCurve, creatorFee)
	if ethForCurve.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	tokensOut, err := QuoteBuy(s, ethForCurve)
	if err != nil {
		return nil, err
	}

	refund := big.NewInt(0)
	migrationTriggered := false
	if tokensOut.Cmp(headroom) >= 0 {
		// Clamp to the remaining headroom and charge only the exact cost.
		tokensOut = headroom
		exact, err := CalculateEthIn(s, tokensOut)
		if err != nil {
			return nil, err
		}
		if exact.Cmp(ethForCurve) > 0 {
			return nil, ErrArithmetic
		}
		refund = new(big.Int).Sub(ethForCurve, exact)
		ethForCurve = exact
		migrationTriggered = true
	}

	if minTokensOut != nil && tokensOut.Cmp(minTokensOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if maxSlippageBps > 0 {
		if err := checkSlippage(s, ethForCurve, tokensOut, maxSlippageBps); err != nil {
			return nil, err
		}
	}

	next := s.Clone()
	next.VirtualEth.Add(next.VirtualEth, ethForCurve)
	next.VirtualTokens.Sub(next.VirtualTokens, tokensOut)
	next.TotalSupply.Add(next.TotalSupply, tokensOut)
	if next.VirtualTokens.Sign() <= 0 || !inU128(next.VirtualEth) {
		return nil, ErrArithmetic
	}
	if next.TotalSupply.Cmp(CurveSupply) > 0 {
		return nil, ErrArithmetic
	}

	return &BuyResult{
		State:              next,
		TokensOut:          tokensOut,
		EthForCurve:        ethForCurve,
		PlatformFee:        platformFee,
		CreatorFee:         creatorFee,
		Refund:             refund,
		MigrationTriggered: migrationTriggered,
	}, nil
}

// ApplySell moves tokensIn back onto the curve and pays out the quoted ETH
// minus the platform fee. Sells never trigger migration.
func ApplySell(s State, tokensIn, minEthOut *big.Int, maxSlippageBps uint32) (*SellResult, error) {
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if tokensIn.Cmp(s.TotalSupply) > 0 {
		return nil, ErrInvalidAmount
	}

	ethFromCurve, err := QuoteSell(s, tokensIn)
	if err != nil {
		return nil, err
	}
	if ethFromCurve.Cmp(s.VirtualEth) >= 0 {
		// Draining the full virtual reserve would zero the price.
		return nil, ErrArithmetic
	}

	platformFee := feeOf(ethFromCurve, PlatformFeeBps)
	ethOut := new(big.Int).Sub(ethFromCurve, platformFee)
	if minEthOut != nil && ethOut.Cmp(minEthOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if maxSlippageBps > 0 {
		// Realized payout vs spot: ideal = tokensIn * vE / vT.
		ideal := new(big.Int).Mul(tokensIn, s.VirtualEth)
		ideal.Div(ideal, s.VirtualTokens)
		if err := slippageWithin(ideal, ethOut, maxSlippageBps); err != nil {
			return nil, err
		}
	}

	next := s.Clone()
	next.VirtualEth.Sub(next.VirtualEth, ethFromCurve)
	next.VirtualTokens.Add(next.VirtualTokens, tokensIn)
	next.TotalSupply.Sub(next.TotalSupply, tokensIn)
	if next.VirtualEth.Sign() <= 0 || !inU128(next.VirtualTokens) {
		return nil, ErrArithmetic
	}

	return &SellResult{
		State:       next,
		EthOut:      ethOut,
		PlatformFee: platformFee,
	}, nil
}

// Progress reports how much of the curve supply has been issued, in [0, 1].
func Progress(s State) float64 {
	if s.TotalSupply == nil || s.TotalSupply.Sign() <= 0 {
		return 0
	}
	num := new(big.Float).SetInt(s.TotalSupply)
	den := new(big.Float).SetInt(CurveSupply)
	p, _ := new(big.Float).Quo(num, den).Float64()
	if p > 1.0 {
		p = 1.0
	}
	return p
}

func checkSlippage(s State, ethForCurve, tokensOut *big.Int, maxBps uint32) error {
	// Ideal fill at the pre-trade spot price: tokensOut = ethForCurve * vT / vE.
	if s.VirtualEth.Sign() == 0 {
		return ErrArithmetic
	}
	ideal := new(big.Int).Mul(ethForCurve, s.VirtualTokens)
	ideal.Div(ideal, s.VirtualEth)
	return slippageWithin(ideal, tokensOut, maxBps)
}

func slippageWithin(ideal, realized *big.Int, maxBps uint32) error {
	if ideal.Sign() <= 0 {
		return ErrArithmetic
	}
	if realized.Cmp(ideal) >= 0 {
		return nil
	}
	diff := new(big.Int).Sub(ideal, realized)
	diff.Mul(diff, big.NewInt(BpsDenominator))
	diff.Div(diff, ideal)
	if diff.Cmp(new(big.Int).SetUint64(uint64(maxBps))) > 0 {
		return ErrSlippageExceeded
	}
	return nil
}

// feeOf computes amount * bps / 10000, floor-rounded.
func feeOf(amount *big.Int, bps uint32) *big.Int {
	if bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}

// ceilDiv returns ceil(num / denom) for positive denom.
func ceilDiv(num, denom *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, denom, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func inU128(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(maxUint128) <= 0
}
