package orchestrator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/psantana5/sitesync/pkg/models"
)

type workerInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Role  string `json:"role" validate:"required,max=100"`
	Phone string `json:"phone" validate:"max=50"`
}

type taskInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Priority    string `json:"priority" validate:"required,oneof=low medium high"`
}

type equipmentInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	Type      string `json:"type" validate:"required,max=100"`
	Condition string `json:"condition" validate:"required,oneof=excellent good fair poor"`
}

type checkInEquipmentInput struct {
	EquipmentID string `json:"equipment_id" validate:"required"`
	Condition   string `json:"condition" validate:"required,oneof=excellent good fair poor"`
}

type equipmentStatusInput struct {
	EquipmentID string `json:"equipment_id" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=available maintenance"`
}

type reportInput struct {
	Description string `json:"description" validate:"required,max=4000"`
}

// newValidator reports field names by their json tag
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and converts failures into a ValidationError for op
func (o *Orchestrator) check(op string, in interface{}) error {
	err := o.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewValidationError(op, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return models.NewValidationError(op, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// requireID trims id and rejects blanks
func (o *Orchestrator) requireID(op, field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", models.NewValidationError(op, field+" is required")
	}
	return id, nil
}

// requireSession rejects commands that need an owner when nobody is logged in
func (o *Orchestrator) requireSession(op string) (string, error) {
	uid := o.UserID()
	if uid == "" {
		return "", models.NewValidationError(op, "no session user: log in first")
	}
	return uid, nil
}
