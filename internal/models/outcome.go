package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"prediction-settlement/internal/apperr"
)

// Outcome is one side of a binary market. The numeric values match the
// vote encoding used by wallet clients (1 = YES, 2 = NO).
type Outcome int16

const (
	OutcomeYes Outcome = 1
	OutcomeNo  Outcome = 2
)

func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return fmt.Sprintf("Outcome(%d)", int16(o))
	}
}

// ParseOutcome accepts "YES"/"NO" in any case as well as "1"/"2".
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "1":
		return OutcomeYes, nil
	case "NO", "2":
		return OutcomeNo, nil
	}
	return 0, apperr.ErrInvalidOutcome.WithDetail(fmt.Sprintf("unknown outcome %q", s))
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts either the string form or the numeric vote code.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int16
		if err := json.Unmarshal(data, &n); err != nil {
			return apperr.ErrInvalidOutcome.WithDetail("outcome must be a string or number")
		}
		s = fmt.Sprint(n)
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
