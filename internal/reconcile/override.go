package reconcile

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultApprovalThreshold deviation, in percent, above which an override needs an admin.
const DefaultApprovalThreshold = 50.0

// MinReasonLength minimum override reason length in characters
const MinReasonLength = 10

// Tier approval tier of an override
type Tier string

const (
	TierAutoApproved  Tier = "auto-approved"
	TierRequiresAdmin Tier = "requires-admin-approval"
)

// OverrideEvaluation advisory classification of a proposed price
type OverrideEvaluation struct {
	ProposedPrice    float64  `json:"proposed_price"`
	CurrentPrice     *float64 `json:"current_price"`
	DeviationPercent float64  `json:"deviation_percent"`
	Tier             Tier     `json:"tier"`
	HasBaseline      bool     `json:"has_baseline"`
}

// OverridePolicy classifies overrides against a strict deviation threshold.
type OverridePolicy struct {
	Threshold float64
}

// NewOverridePolicy returns a policy; a non-positive threshold falls back to the default.
func NewOverridePolicy(threshold float64) OverridePolicy {
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	return OverridePolicy{Threshold: threshold}
}

// Evaluate computes the deviation of proposed from current. A missing or zero
// current price yields 0% and HasBaseline=false.
func (p OverridePolicy) Evaluate(proposed float64, current *float64) OverrideEvaluation {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}

	eval := OverrideEvaluation{
		ProposedPrice: proposed,
		Tier:          TierAutoApproved,
	}
	if current != nil {
		c := *current
		eval.CurrentPrice = &c
	}

	if current != nil && *current > 0 {
		eval.HasBaseline = true
		eval.DeviationPercent = round2((proposed - *current) / *current * 100)
	}

	if math.Abs(eval.DeviationPercent) > threshold {
		eval.Tier = TierRequiresAdmin
	}
	return eval
}

// OverrideInput fields of an override submission
type OverrideInput struct {
	CommodityID   uint
	OverridePrice float64
	Reason        string
	SourceInfo    string
	Date          string
}

// FieldErrors maps a request field to its validation message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts FieldErrors from err.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ValidateOverride runs the client-side field checks. It returns FieldErrors or nil.
func ValidateOverride(in OverrideInput, now time.Time) error {
	fields := FieldErrors{}

	if in.CommodityID == 0 {
		fields["commodity_id"] = "commodity is required"
	}
	if !(in.OverridePrice > 0) || math.IsInf(in.OverridePrice, 0) {
		fields["override_price"] = "price must be greater than 0"
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Reason)) < MinReasonLength {
		fields["reason"] = "reason must be at least 10 characters"
	}
	if strings.TrimSpace(in.SourceInfo) == "" {
		fields["source_info"] = "source information is required"
	}
	checkDate(fields, "date", in.Date, now, false)

	if len(fields) > 0 {
		return fields
	}
	return nil
}

// MarketPriceInput fields of a market price submission
type MarketPriceInput struct {
	CommodityID    uint
	CommodityName  string
	Price          float64
	Date           string
	MarketName     string
	MarketLocation string
	Quality        string
}

// ValidateMarketPrice checks a market submission before it is forwarded. A
// submission must reference an existing commodity or name a new one.
func ValidateMarketPrice(in MarketPriceInput, now time.Time) error {
	fields := FieldErrors{}

	if in.CommodityID == 0 && strings.TrimSpace(in.CommodityName) == "" {
		fields["commodity_id"] = "commodity is required"
	}
	if !(in.Price > 0) || math.IsInf(in.Price, 0) {
		fields["price"] = "price must be greater than 0"
	}
	if strings.TrimSpace(in.MarketName) == "" {
		fields["market_name"] = "market name is required"
	}
	checkDate(fields, "date", in.Date, now, true)
	if in.Quality != "" && ParseQuality(in.Quality) == QualityStandard && in.Quality != string(QualityStandard) {
		fields["quality"] = "quality must be premium, standard or ekonomis"
	}

	if len(fields) > 0 {
		return fields
	}
	return nil
}

func checkDate(fields FieldErrors, key, value string, now time.Time, required bool) {
	if strings.TrimSpace(value) == "" {
		if required {
			fields[key] = "date is required"
		}
		return
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		fields[key] = "date must be YYYY-MM-DD"
		return
	}
	if IsFutureDate(d, now) {
		fields[key] = "date cannot be in the future"
	}
}
