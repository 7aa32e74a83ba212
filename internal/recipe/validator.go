package recipe

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/welldanyogia/recetas/backend/internal/auth"
)

const (
	msgAllFieldsRequired = "Todos los campos son obligatorios"
	msgPrepTime          = "El tiempo de preparación debe ser mayor a 0"
	msgDifficulty        = "La dificultad debe ser un valor entre 1 y 5"
	msgMediaType         = "El tipo de medio debe ser image o video"
	msgInvalidRecipe     = "Los datos de la receta no son válidos"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateInput checks in and turns failures into a validation error whose
// message names the most relevant rule and whose details list every failure.
func validateInput(in RecipeInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make(map[string][]string)
	msg := ""
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		details[field] = append(details[field], fe.Tag())

		if msg == "" || fe.Tag() == "required" {
			msg = messageFor(fe)
		}
	}

	return &auth.Error{Kind: auth.ErrValidation, Message: msg, Details: details}
}

func messageFor(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required":
		return msgAllFieldsRequired
	case fe.Field() == "prepTime":
		return msgPrepTime
	case fe.Field() == "difficulty":
		return msgDifficulty
	case fe.Field() == "mediaType":
		return msgMediaType
	case fe.Field() == "ingredients" || fe.Field() == "instructions":
		return msgAllFieldsRequired
	default:
		return msgInvalidRecipe
	}
}
