package shared

import "strings"

// PaymentFamily classifies how many payments an order's total may be split into.
type PaymentFamily string

const (
	// PaymentFamilyDirect settles in a single lump sum.
	PaymentFamilyDirect PaymentFamily = "DIRECT"
	// PaymentFamilyInstallment settles across an amortized schedule.
	PaymentFamilyInstallment PaymentFamily = "INSTALLMENT"
)

var installmentMethods = map[string]struct{}{
	"installment": {},
	"instalment":  {},
	"finance":     {},
	"financing":   {},
}

// ClassifyPaymentMethod maps a free-form payment method onto exactly two
// families. The installment vocabulary is fixed; everything else, including
// cash, card and transfer, is a direct lump sum.
func ClassifyPaymentMethod(method string) PaymentFamily {
	if _, ok := installmentMethods[strings.ToLower(strings.TrimSpace(method))]; ok {
		return PaymentFamilyInstallment
	}
	return PaymentFamilyDirect
}
