package domain

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// MarketStatus represents the lifecycle state of a market draft.
type MarketStatus string

const (
	// MarketStatusDraft is an editable, unpublished market record.
	MarketStatusDraft MarketStatus = "draft"
	// MarketStatusActivating means the creation transaction has been
	// submitted but not yet confirmed on-chain.
	MarketStatusActivating MarketStatus = "activating"
	// MarketStatusActive means the market is confirmed deployed on-chain.
	// Active markets are immutable.
	MarketStatusActive MarketStatus = "active"
)

// MarketType discriminates the outcome structure of a market.
type MarketType string

const (
	MarketTypeYesNo       MarketType = "yesno"
	MarketTypeScalar      MarketType = "scalar"
	MarketTypeCategorical MarketType = "categorical"
)

// ActivationTimeout is how long a market may sit in "activating" before the
// reconciler gives up and reverts it to draft.
const ActivationTimeout = 15 * time.Minute

// Market is a user-authored prediction market draft that is eventually
// deployed on-chain. Decimal fields are decimal strings to preserve
// arbitrary precision across JSON and SQL boundaries.
type Market struct {
	UID                  string         `json:"uid"`
	Type                 MarketType     `json:"type"`
	Description          string         `json:"description"`
	Details              string         `json:"details"`
	ResolutionSource     *string        `json:"resolutionSource"`
	EndTime              time.Time      `json:"endTime"`
	Tags                 []string       `json:"tags"`
	Category             string         `json:"category"`
	MarketCreatorFeeRate string         `json:"marketCreatorFeeRate"` // percent, 0-10
	Author               string         `json:"author"`
	Metadata             map[string]any `json:"metadata"` // opaque, e.g. {"timezone": "America/New_York"}

	// Scalar-only fields, nil for yesno/categorical markets.
	MinPrice           *string `json:"minPrice,omitempty"`
	MaxPrice           *string `json:"maxPrice,omitempty"`
	NumTicks           *string `json:"numTicks,omitempty"`
	ScalarDenomination *string `json:"scalarDenomination,omitempty"`

	// Lifecycle fields, owned by the guarded transitions.
	Status          MarketStatus `json:"status"`
	TransactionHash *string      `json:"transactionHash,omitempty"`
	ActivatedAt     *time.Time   `json:"activatedAt,omitempty"`
	Address         *string      `json:"address,omitempty"` // deployed contract address, set on activation

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsScalar reports whether the market carries a scalar price range.
func (m *Market) IsScalar() bool {
	return m.Type == MarketTypeScalar
}

// CanTransition reports whether moving from the market's current status to
// the target status is a legal lifecycle transition. Status only moves
// forward (draft -> activating -> active) except for the explicit revert
// (activating -> draft) used on authorization failure or timeout.
func (m *Market) CanTransition(to MarketStatus) bool {
	switch m.Status {
	case MarketStatusDraft:
		return to == MarketStatusActivating
	case MarketStatusActivating:
		return to == MarketStatusActive || to == MarketStatusDraft
	default:
		return false
	}
}

// ActivationExpired reports whether the market has been stuck in
// "activating" for longer than the timeout as of now.
func (m *Market) ActivationExpired(now time.Time) bool {
	return m.Status == MarketStatusActivating &&
		m.ActivatedAt != nil &&
		now.Sub(*m.ActivatedAt) > ActivationTimeout
}

// decCtx is the shared apd context for tick arithmetic. 78 digits covers
// the widest value representable in a uint256.
var decCtx = apd.BaseContext.WithPrecision(78)

// DeriveNumTicks computes the number of discrete price steps for a scalar
// market: (maxPrice - minPrice) / precision. The result is returned as a
// plain decimal string.
func DeriveNumTicks(minPrice, maxPrice, precision string) (string, error) {
	lo, _, err := apd.NewFromString(minPrice)
	if err != nil {
		return "", err
	}
	hi, _, err := apd.NewFromString(maxPrice)
	if err != nil {
		return "", err
	}
	prec, _, err := apd.NewFromString(precision)
	if err != nil {
		return "", err
	}
	if prec.IsZero() {
		return "", ErrValidation
	}

	span := new(apd.Decimal)
	if _, err := decCtx.Sub(span, hi, lo); err != nil {
		return "", err
	}
	if span.Sign() <= 0 {
		return "", ErrValidation
	}

	ticks := new(apd.Decimal)
	if _, err := decCtx.Quo(ticks, span, prec); err != nil {
		return "", err
	}
	// Normalise 1E+2 style exponents back to plain digits.
	reduced := new(apd.Decimal)
	if _, _, err := decCtx.Reduce(reduced, ticks); err != nil {
		return "", err
	}
	return reduced.Text('f'), nil
}

// DerivePrecision recovers the reporting precision from a persisted scalar
// market: (maxPrice - minPrice) / numTicks. It is the inverse of
// DeriveNumTicks, which makes the two share an implementation.
func DerivePrecision(minPrice, maxPrice, numTicks string) (string, error) {
	return DeriveNumTicks(minPrice, maxPrice, numTicks)
}
