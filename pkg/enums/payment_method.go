package enums

import "fmt"

// PaymentMethod identifies one of the sandbox payment methods accepted by the
// gateway. Real tokenized methods are out of scope; these are the fixed test
// instruments.
type PaymentMethod string

const (
	PaymentMethodFakeVisa       PaymentMethod = "pm_fake_visa"
	PaymentMethodFakeMastercard PaymentMethod = "pm_fake_mastercard"
	PaymentMethodFakeAmex       PaymentMethod = "pm_fake_amex"
	PaymentMethodFakeDiscover   PaymentMethod = "pm_fake_discover"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodFakeVisa,
	PaymentMethodFakeMastercard,
	PaymentMethodFakeAmex,
	PaymentMethodFakeDiscover,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is an accepted payment method.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
