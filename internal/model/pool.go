package model

import "time"

// Pool is a pooled-lending entity whose yield is partially donated to a
// charity. Totals are cumulative over the pool's lifetime.
type Pool struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Charity        string    `json:"charity"`
	DonationPct    int       `json:"donation_pct"` // 0-100
	Creator        string    `json:"creator"`
	Asset          string    `json:"asset"`
	TotalDeposited float64   `json:"total_deposited"`
	TotalYield     float64   `json:"total_yield"`
	TotalDonated   float64   `json:"total_donated"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Position is one contributor's standing within a pool. Withdrawals are
// tracked separately so the deposit history stays append-only.
type Position struct {
	PoolID      string    `json:"pool_id"`
	Contributor string    `json:"contributor"`
	Deposited   float64   `json:"deposited"`
	Withdrawn   float64   `json:"withdrawn"`
	// DonatedShare is the contributor's cumulative slice of the pool's
	// donations, proportional to their net balance at each yield event.
	DonatedShare float64   `json:"donated_share"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Balance returns the contributor's net deposit.
func (p Position) Balance() float64 {
	return p.Deposited - p.Withdrawn
}
