package domain

// LimitKind names the specific allowance a denial refers to. Quota-exceeded
// responses must state which limit was hit.
type LimitKind string

const (
	LimitDailyPro     LimitKind = "daily_pro"
	LimitMonthlyPro   LimitKind = "monthly_pro"
	LimitMonthlyElite LimitKind = "monthly_elite"
	LimitEliteOnly    LimitKind = "elite_only"
	// LimitProOnly marks continuation denials: the chat was created with a
	// pro-tier model the caller can no longer use.
	LimitProOnly LimitKind = "pro_only"
)

// QuotaCharge identifies which counter movement a successful creation must
// apply. The store applies it as a conditional atomic update in the same
// transaction as the chat write.
type QuotaCharge int

const (
	ChargeNone QuotaCharge = iota
	// ChargeFreeDailyPro increments the daily pro counter and consumes one
	// monthly pro credit. Non-subscribers burning their free daily pro
	// allowance also draw down the monthly counter; intentional per product.
	ChargeFreeDailyPro
	ChargeMonthlyPro
	ChargeMonthlyElite
)

// Limit maps a charge back to the allowance it draws from, for building the
// denial when the conditional update loses a race.
func (c QuotaCharge) Limit() LimitKind {
	switch c {
	case ChargeFreeDailyPro:
		return LimitDailyPro
	case ChargeMonthlyPro:
		return LimitMonthlyPro
	case ChargeMonthlyElite:
		return LimitMonthlyElite
	}
	return ""
}

// QuotaError is a denial carrying the product copy for the limit that was hit.
type QuotaError struct {
	Limit   LimitKind
	Message string
}

func (e *QuotaError) Error() string { return e.Message }

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

var denialCopy = map[LimitKind]string{
	LimitDailyPro:     "You've reached your daily Pro limit (2/day).",
	LimitMonthlyPro:   "You've used all 150 Pro messages this month.",
	LimitMonthlyElite: "You've used all 50 Elite messages this month.",
	LimitEliteOnly:    "Elite models are for Pro users only.",
}

// QuotaDenial builds the denial error for the given limit.
func QuotaDenial(limit LimitKind) *QuotaError {
	return &QuotaError{Limit: limit, Message: denialCopy[limit]}
}

// QuotaDecision is the ephemeral verdict for one creation attempt. It is
// never persisted; the service recomputes it per request.
type QuotaDecision struct {
	Allowed bool
	Charge  QuotaCharge
	Denial  *QuotaError
}

// DecideQuota evaluates the tier rules against the user's counters. The daily
// reset must already have been applied to c by the caller; it is a store
// operation, not part of the decision.
func DecideQuota(tier ModelTier, isPro bool, c UsageCounters) QuotaDecision {
	switch tier {
	case TierBasic:
		return QuotaDecision{Allowed: true, Charge: ChargeNone}
	case TierPro:
		if !isPro {
			if c.ProToday >= FreeProPerDay {
				return QuotaDecision{Denial: QuotaDenial(LimitDailyPro)}
			}
			return QuotaDecision{Allowed: true, Charge: ChargeFreeDailyPro}
		}
		if c.ProMonth <= 0 {
			return QuotaDecision{Denial: QuotaDenial(LimitMonthlyPro)}
		}
		return QuotaDecision{Allowed: true, Charge: ChargeMonthlyPro}
	case TierElite:
		if !isPro {
			return QuotaDecision{Denial: QuotaDenial(LimitEliteOnly)}
		}
		if c.EliteMonth <= 0 {
			return QuotaDecision{Denial: QuotaDenial(LimitMonthlyElite)}
		}
		return QuotaDecision{Allowed: true, Charge: ChargeMonthlyElite}
	}
	return QuotaDecision{Denial: &QuotaError{Message: "unsupported model tier"}}
}
