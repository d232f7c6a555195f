package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/shalteor/grade-calculator/internal/grades"
)

// ID is a category or assignment id. Clients send either a JSON string or a
// JSON integer; both are kept as the decimal string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "id must be a string or an integer")
	}
	if _, err := n.Int64(); err != nil {
		return errors.Errorf("id %s is not an integer", n)
	}
	*id = ID(n.String())
	return nil
}

// AssignmentRequest is one assignment of a save request.
type AssignmentRequest struct {
	ID    ID       `json:"id" validate:"required,number,max=100"`
	Name  *string  `json:"name" validate:"required"`
	Score *float64 `json:"score" validate:"required"`
	Max   *float64 `json:"max" validate:"required"`
}

// CategoryRequest is one category of a save request.
type CategoryRequest struct {
	ID          ID                  `json:"id" validate:"required,number,max=100"`
	Name        *string             `json:"name" validate:"required"`
	Weight      *float64            `json:"weight" validate:"required"`
	Assignments []AssignmentRequest `json:"assignments" validate:"unique=ID,dive"`
}

// SaveRequest is the body of POST /save.
type SaveRequest struct {
	Username   string            `json:"username" validate:"required,max=100"`
	Categories []CategoryRequest `json:"categories" validate:"required,unique=ID,dive"`
}

// Inputs converts the request into store input.
func (r SaveRequest) Inputs() []grades.CategoryInput {
	out := make([]grades.CategoryInput, 0, len(r.Categories))
	for _, c := range r.Categories {
		in := grades.CategoryInput{
			ID:          string(c.ID),
			Name:        *c.Name,
			Weight:      *c.Weight,
			Assignments: make([]grades.AssignmentInput, 0, len(c.Assignments)),
		}
		for _, a := range c.Assignments {
			in.Assignments = append(in.Assignments, grades.AssignmentInput{
				ID:    string(a.ID),
				Name:  *a.Name,
				Score: *a.Score,
				Max:   *a.Max,
			})
		}
		out = append(out, in)
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first validator failure into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "SaveRequest.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required.", field)
	case "number":
		return fmt.Sprintf("Field %s must be a non-negative integer.", field)
	case "unique":
		return fmt.Sprintf("Field %s contains duplicate ids.", field)
	case "max":
		return fmt.Sprintf("Field %s must be at most %s characters.", field, fe.Param())
	default:
		return fmt.Sprintf("Field %s is invalid.", field)
	}
}
