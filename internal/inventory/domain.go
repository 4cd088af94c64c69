package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle status of a ledger entry.
type EntryStatus string

const (
	// EntryStatusPending marks entries created implicitly on first delivery,
	// before the dealer has confirmed a sale price.
	EntryStatusPending EntryStatus = "PENDING"
	// EntryStatusActive marks entries with a confirmed dealer price.
	EntryStatusActive EntryStatus = "ACTIVE"
)

// Entry is the ledger record for one (dealer, car configuration) pair. It is
// the single source of truth for how many units the dealer currently holds.
type Entry struct {
	DealerID    int64           `json:"dealer_id"`
	CarConfigID int64           `json:"car_config_id"`
	Quantity    int64           `json:"quantity"`
	DealerPrice decimal.Decimal `json:"dealer_price"`
	Status      EntryStatus     `json:"status"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
