package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"github.com/veilco/market-creation/internal/domain"
)

// Wire-shape patterns. Decimal values travel as decimal-string scalars and
// hashes/addresses as 0x-prefixed hex.
var (
	decimalPattern = regexp.MustCompile(`^[0-9]{0,78}(\.[0-9]{0,78})?$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// MarketInput is the user-supplied shape for creating or updating a market
// draft. It is an explicit whitelist: fields absent here can never be set
// through the mutation API.
type MarketInput struct {
	Type                 domain.MarketType `json:"type" validate:"required,oneof=yesno scalar categorical"`
	Description          string            `json:"description" validate:"required,max=1024"`
	Details              string            `json:"details"`
	ResolutionSource     *string           `json:"resolutionSource" validate:"omitempty,url"`
	EndTime              time.Time         `json:"endTime" validate:"required"`
	Tags                 []string          `json:"tags" validate:"omitempty,max=16,dive,min=1,max=64"`
	Category             string            `json:"category" validate:"required,max=32"`
	MarketCreatorFeeRate string            `json:"marketCreatorFeeRate" validate:"required,bigdecimal"`
	Author               string            `json:"author" validate:"required,ethaddr"`
	Metadata             map[string]any    `json:"metadata"`

	// Scalar-only. ScalarPrecision is the reporting step used to derive
	// NumTicks; callers may instead supply NumTicks directly.
	MinPrice           *string `json:"minPrice" validate:"omitempty,bigdecimal"`
	MaxPrice           *string `json:"maxPrice" validate:"omitempty,bigdecimal"`
	ScalarPrecision    *string `json:"scalarPrecision" validate:"omitempty,bigdecimal"`
	NumTicks           *string `json:"numTicks" validate:"omitempty,bigdecimal"`
	ScalarDenomination *string `json:"scalarDenomination" validate:"omitempty,max=256"`
}

// newValidator builds the validator with the wire-shape checks registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("bigdecimal", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && decimalPattern.MatchString(s)
	})
	_ = v.RegisterValidation("ethaddr", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError wraps a human-readable reason in domain.ErrValidation.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrValidation)
}

// checkInput validates in's shape and range and returns the market content
// it describes. It never touches lifecycle fields.
func (s *MarketService) checkInput(in MarketInput) (domain.Market, error) {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return domain.Market{}, validationError("field %s failed %s", f.Field(), f.Tag())
		}
		return domain.Market{}, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}

	if err := checkFeeRate(in.MarketCreatorFeeRate); err != nil {
		return domain.Market{}, err
	}

	m := domain.Market{
		Type:                 in.Type,
		Description:          in.Description,
		Details:              in.Details,
		ResolutionSource:     in.ResolutionSource,
		EndTime:              in.EndTime.UTC(),
		Tags:                 in.Tags,
		Category:             in.Category,
		MarketCreatorFeeRate: in.MarketCreatorFeeRate,
		Author:               in.Author,
		Metadata:             in.Metadata,
	}

	if in.Type != domain.MarketTypeScalar {
		if in.MinPrice != nil || in.MaxPrice != nil || in.NumTicks != nil ||
			in.ScalarPrecision != nil || in.ScalarDenomination != nil {
			return domain.Market{}, validationError("scalar fields are only valid on scalar markets")
		}
		return m, nil
	}

	// Scalar market: price range, denomination and tick count are required.
	if in.MinPrice == nil || in.MaxPrice == nil {
		return domain.Market{}, validationError("scalar market requires minPrice and maxPrice")
	}
	if in.ScalarDenomination == nil || strings.TrimSpace(*in.ScalarDenomination) == "" {
		return domain.Market{}, validationError("scalar market requires scalarDenomination")
	}
	if err := checkPriceRange(*in.MinPrice, *in.MaxPrice); err != nil {
		return domain.Market{}, err
	}

	numTicks, err := resolveNumTicks(in)
	if err != nil {
		return domain.Market{}, err
	}

	m.MinPrice = in.MinPrice
	m.MaxPrice = in.MaxPrice
	m.NumTicks = &numTicks
	m.ScalarDenomination = in.ScalarDenomination
	return m, nil
}

// resolveNumTicks derives the tick count from the precision when given,
// otherwise takes the explicit value.
func resolveNumTicks(in MarketInput) (string, error) {
	if in.ScalarPrecision != nil {
		ticks, err := domain.DeriveNumTicks(*in.MinPrice, *in.MaxPrice, *in.ScalarPrecision)
		if err != nil {
			return "", validationError("cannot derive numTicks from precision %s", *in.ScalarPrecision)
		}
		return ticks, nil
	}
	if in.NumTicks != nil {
		return *in.NumTicks, nil
	}
	return "", validationError("scalar market requires scalarPrecision or numTicks")
}

func checkFeeRate(rate string) error {
	fee, _, err := apd.NewFromString(rate)
	if err != nil {
		return validationError("marketCreatorFeeRate %q is not a decimal", rate)
	}
	ten := apd.New(10, 0)
	if fee.Sign() < 0 || fee.Cmp(ten) > 0 {
		return validationError("marketCreatorFeeRate must be between 0 and 10")
	}
	return nil
}

func checkPriceRange(minPrice, maxPrice string) error {
	lo, _, err := apd.NewFromString(minPrice)
	if err != nil {
		return validationError("minPrice %q is not a decimal", minPrice)
	}
	hi, _, err := apd.NewFromString(maxPrice)
	if err != nil {
		return validationError("maxPrice %q is not a decimal", maxPrice)
	}
	if lo.Cmp(hi) >= 0 {
		return validationError("minPrice must be strictly below maxPrice")
	}
	return nil
}
