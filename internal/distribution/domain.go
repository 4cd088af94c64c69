package distribution

import "time"

// Status enumerates the distribution request lifecycle. Rejected and Delivered
// are terminal; a request is never deleted or revived.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
)

// Request asks the manufacturer for additional stock of a car configuration.
type Request struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"code"`
	DealerID           int64      `json:"dealer_id"`
	CarConfigID        int64      `json:"car_config_id"`
	Quantity           int64      `json:"quantity"`
	Status             Status     `json:"status"`
	RequestedBy        int64      `json:"requested_by"`
	RequestDate        time.Time  `json:"request_date"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	ExpectedDeliveryAt *time.Time `json:"expected_delivery_at,omitempty"`
	ActualDeliveryAt   *time.Time `json:"actual_delivery_at,omitempty"`
}
