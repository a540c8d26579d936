package enums

import "fmt"

// CaptureMethod controls when captured funds are finalized.
type CaptureMethod string

const (
	CaptureMethodAutomatic CaptureMethod = "automatic"
	CaptureMethodManual    CaptureMethod = "manual"
)

var validCaptureMethods = []CaptureMethod{
	CaptureMethodAutomatic,
	CaptureMethodManual,
}

// String implements fmt.Stringer.
func (c CaptureMethod) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CaptureMethod.
func (c CaptureMethod) IsValid() bool {
	for _, candidate := range validCaptureMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCaptureMethod converts raw input into a CaptureMethod.
func ParseCaptureMethod(value string) (CaptureMethod, error) {
	for _, candidate := range validCaptureMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid capture method %q", value)
}
