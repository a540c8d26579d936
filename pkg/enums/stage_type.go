package enums

import "fmt"

// StageType identifies one of the five fixed verification stages run for a
// confirmed payment intent.
type StageType string

const (
	StageTypeAntiFraud       StageType = "anti_fraud"
	StageTypeAuthorization   StageType = "authorization"
	StageTypeRiskAssessment  StageType = "risk_assessment"
	StageTypeComplianceCheck StageType = "compliance_check"
	StageTypeCapture         StageType = "capture"
)

var validStageTypes = []StageType{
	StageTypeAntiFraud,
	StageTypeAuthorization,
	StageTypeRiskAssessment,
	StageTypeComplianceCheck,
	StageTypeCapture,
}

// AllStageTypes returns the closed stage set in display order.
func AllStageTypes() []StageType {
	out := make([]StageType, len(validStageTypes))
	copy(out, validStageTypes)
	return out
}

// String implements fmt.Stringer.
func (t StageType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known StageType.
func (t StageType) IsValid() bool {
	for _, candidate := range validStageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Position returns the informational 1-based order of the stage. Stages do
// not run sequentially.
func (t StageType) Position() int {
	for i, candidate := range validStageTypes {
		if candidate == t {
			return i + 1
		}
	}
	return 0
}

// DisplayName returns the human readable stage name.
func (t StageType) DisplayName() string {
	switch t {
	case StageTypeAntiFraud:
		return "Anti-Fraud Screening"
	case StageTypeAuthorization:
		return "Card Authorization"
	case StageTypeRiskAssessment:
		return "Risk Assessment"
	case StageTypeComplianceCheck:
		return "Compliance Check"
	case StageTypeCapture:
		return "Funds Capture"
	}
	return string(t)
}

// Description returns the stage summary shown in job listings.
func (t StageType) Description() string {
	switch t {
	case StageTypeAntiFraud:
		return "Scores the transaction against fraud heuristics"
	case StageTypeAuthorization:
		return "Requests an authorization hold from the issuer"
	case StageTypeRiskAssessment:
		return "Evaluates customer and merchant risk signals"
	case StageTypeComplianceCheck:
		return "Runs sanctions and compliance screening"
	case StageTypeCapture:
		return "Captures the authorized funds"
	}
	return ""
}

// FailureMessage returns the stage-specific error recorded when the stage is
// the designated failing one.
func (t StageType) FailureMessage() string {
	switch t {
	case StageTypeAntiFraud:
		return "transaction flagged by fraud screening"
	case StageTypeAuthorization:
		return "issuer declined the authorization request"
	case StageTypeRiskAssessment:
		return "risk score exceeded the acceptable threshold"
	case StageTypeComplianceCheck:
		return "compliance screening raised a blocking match"
	case StageTypeCapture:
		return "capture request rejected by the processor"
	}
	return "verification stage failed"
}

// ParseStageType converts raw input into a StageType.
func ParseStageType(value string) (StageType, error) {
	for _, candidate := range validStageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stage type %q", value)
}
