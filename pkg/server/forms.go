package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/elonfeng/topmovies/internal/store"
	"github.com/go-playground/validator/v10"
)

type addForm struct {
	Title string `validate:"required,max=250"`
}

type editForm struct {
	Rating *float64 `validate:"omitempty,gte=0,lte=10"`
	Review *string  `validate:"omitempty,max=250"`
}

// decodeEdit turns the raw edit fields into an update. Blank fields are
// left out of the update so the stored values stay as they are.
func (s *Server) decodeEdit(rating, review string) (store.MovieUpdate, map[string]string) {
	var form editForm

	if rating != "" {
		v, err := strconv.ParseFloat(rating, 64)
		if err != nil {
			return store.MovieUpdate{}, map[string]string{"rating": "Rating must be a number, e.g. 7.5."}
		}
		form.Rating = &v
	}
	if review != "" {
		form.Review = &review
	}

	if errs := s.validateForm(form); errs != nil {
		return store.MovieUpdate{}, errs
	}
	return store.MovieUpdate{Rating: form.Rating, Review: form.Review}, nil
}

// validateForm runs struct validation and maps failures to lowercase field
// names with a message fit for the page. It returns nil when form is valid.
func (s *Server) validateForm(form any) map[string]string {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"form": err.Error()}
	}

	errs := make(map[string]string, len(ve))
	for _, fe := range ve {
		errs[strings.ToLower(fe.Field())] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "gte", "lte":
		return "Rating must be between 0 and 10."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	}
	return fmt.Sprintf("Invalid value (%s).", fe.Tag())
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
