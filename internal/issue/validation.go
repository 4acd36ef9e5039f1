package issue

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error returns a combined error message.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ToError returns an error if there are validation errors, nil otherwise.
func (e ValidationErrors) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Validate checks the constraints an issue must meet before it is exported
// or stored.
func (i *Issue) Validate() ValidationErrors {
	var errs ValidationErrors

	if i.ID == uuid.Nil {
		errs = append(errs, ValidationError{Field: "id", Message: "required"})
	}
	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "required"})
	}
	seen := make(map[uuid.UUID]bool, len(i.Viewpoints))
	for n, vp := range i.Viewpoints {
		field := fmt.Sprintf("viewpoints[%d]", n)
		if vp == nil {
			errs = append(errs, ValidationError{Field: field, Message: "nil viewpoint"})
			continue
		}
		if vp.GUID == uuid.Nil {
			errs = append(errs, ValidationError{Field: field + ".guid", Message: "required"})
		} else if seen[vp.GUID] {
			errs = append(errs, ValidationError{Field: field + ".guid", Value: vp.GUID.String(), Message: "duplicate viewpoint"})
		}
		seen[vp.GUID] = true
		for p, plane := range vp.ClippingPlanes {
			if len(plane.Normal) < 3 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.clippingPlanes[%d].normal", field, p),
					Message: "needs three components",
				})
			}
		}
	}
	return errs
}
