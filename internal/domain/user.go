package domain

import "time"

// Default monthly allowances granted to every freshly provisioned user.
const (
	DefaultProUsageMonth   = 150
	DefaultEliteUsageMonth = 50

	// FreeProPerDay is the daily pro-tier allowance for non-subscribers.
	FreeProPerDay = 2
)

// User represents an authenticated account within the platform. The row is
// provisioned lazily on first authenticated contact; the identity provider
// owns the identifier.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Image            string    `json:"image,omitempty"`
	IsPro            bool      `json:"isPro"`
	ProUsageToday    int       `json:"proModelUsageToday"`
	ProUsageMonth    int       `json:"proModelUsageThisMonth"`
	EliteUsageMonth  int       `json:"eliteModelUsageThisMonth"`
	LastResetDate    string    `json:"lastResetDate"` // ISO date (YYYY-MM-DD), empty until first reset
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UsageCounters is the slice of User state the quota policy reads.
type UsageCounters struct {
	ProToday   int
	ProMonth   int
	EliteMonth int
}

// Counters extracts the usage counters for quota evaluation.
func (u User) Counters() UsageCounters {
	return UsageCounters{
		ProToday:   u.ProUsageToday,
		ProMonth:   u.ProUsageMonth,
		EliteMonth: u.EliteUsageMonth,
	}
}

// Today formats t as the ISO date string stored in LastResetDate.
func Today(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
