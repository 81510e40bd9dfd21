package enums

import "fmt"

// PaymentMethod maps to the payment_method_enum enum in Postgres.
type PaymentMethod string

const (
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodPoints PaymentMethod = "points"
	PaymentMethodMixed  PaymentMethod = "mixed"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodBank,
	PaymentMethodPoints,
	PaymentMethodMixed,
}

// IsValid reports whether the value matches the canonical payment method enum.
func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// UsesPoints reports whether the method spends loyalty points.
func (m PaymentMethod) UsesPoints() bool {
	return m == PaymentMethodPoints || m == PaymentMethodMixed
}

// ParsePaymentMethod converts raw input into PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
