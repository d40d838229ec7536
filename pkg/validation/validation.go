package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	translatorOnce sync.Once
	translator     ut.Translator
)

func englishTranslator() ut.Translator {
	translatorOnce.Do(func() {
		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
	})
	return translator
}

// New returns a validator reporting fields by their json (or form) name with English messages.
func New() *validator.Validate {
	validate := validator.New()
	trans := englishTranslator()
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(fieldName)

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterTranslation(notBlankTag, trans,
		func(t ut.Translator) error { return t.Add(notBlankTag, "{0} cannot be blank", true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(notBlankTag, fe.Field())
			return s
		},
	)
	return validate
}

// Fields flattens validation failures into field name to message pairs. Errors that are not
// validation failures yield nil.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	trans := englishTranslator()
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Field()
		if ns := fe.Namespace(); strings.Contains(ns, ".") {
			key = ns[strings.Index(ns, ".")+1:]
		}
		fields[key] = fe.Translate(trans)
	}
	return fields
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Ptr:
		if field.IsNil() {
			return true
		}
		return strings.TrimSpace(field.Elem().String()) != ""
	default:
		return true
	}
}
