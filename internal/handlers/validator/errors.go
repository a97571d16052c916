package validator

import (
	"fmt"
	"strings"
)

// ErrMissingFields lists every required field of the request, not only the missing ones,
// so clients get the same message whatever they forgot.
type ErrMissingFields struct {
	error
}

func NewErrMissingFields(fields []string) *ErrMissingFields {
	return &ErrMissingFields{fmt.Errorf("%s required", joinFields(fields))}
}

type ErrInvalidField struct {
	error
}

func NewErrInvalidField(field string, value any) *ErrInvalidField {
	return &ErrInvalidField{fmt.Errorf("invalid %s: %v", field, value)}
}

// joinFields renders "a", "a and b" or "a, b, and c".
func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return "fields"
	case 1:
		return fields[0]
	case 2:
		return fields[0] + " and " + fields[1]
	}
	return strings.Join(fields[:len(fields)-1], ", ") + ", and " + fields[len(fields)-1]
}
