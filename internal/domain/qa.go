package domain

import "fmt"

// QAState is the density verdict for one year of TOW data.
type QAState uint8

const (
	QAPass QAState = iota + 1
	QAFail
)

func (s QAState) String() string {
	switch s {
	case QAPass:
		return "PASS"
	case QAFail:
		return "FAIL"
	default:
		return fmt.Sprintf("QAState(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s QAState) MarshalText() ([]byte, error) {
	switch s {
	case QAPass, QAFail:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("marshal qa state: invalid value %d", uint8(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *QAState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PASS":
		*s = QAPass
	case "FAIL":
		*s = QAFail
	default:
		return fmt.Errorf("unmarshal qa state: unknown value %q", text)
	}
	return nil
}

// EnhancedQAState combines density and temporal coverage verdicts.
type EnhancedQAState uint8

const (
	EnhancedPass EnhancedQAState = iota + 1
	EnhancedFailDensity
	EnhancedFailCoverage
)

func (s EnhancedQAState) String() string {
	switch s {
	case EnhancedPass:
		return "PASS"
	case EnhancedFailDensity:
		return "FAIL_DENSITY"
	case EnhancedFailCoverage:
		return "FAIL_COVERAGE"
	default:
		return fmt.Sprintf("EnhancedQAState(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s EnhancedQAState) MarshalText() ([]byte, error) {
	switch s {
	case EnhancedPass, EnhancedFailDensity, EnhancedFailCoverage:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("marshal enhanced qa state: invalid value %d", uint8(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EnhancedQAState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PASS":
		*s = EnhancedPass
	case "FAIL_DENSITY":
		*s = EnhancedFailDensity
	case "FAIL_COVERAGE":
		*s = EnhancedFailCoverage
	default:
		return fmt.Errorf("unmarshal enhanced qa state: unknown value %q", text)
	}
	return nil
}
