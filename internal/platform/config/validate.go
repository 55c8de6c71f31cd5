package config

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	perr "bazaar/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	vOnce  sync.Once
	vv     *validator.Validate
	vTrans ut.Translator
)

// validatorSvc builds the process validator once with english messages and
// env tag names, so failures name the variable to fix
func validatorSvc() (*validator.Validate, ut.Translator) {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		vTrans, _ = uni.GetTranslator("en")

		vv = validator.New(validator.WithRequiredStructEnabled())
		vv.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("env")
			if tag == "" || tag == "-" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(vv, vTrans)
	})
	return vv, vTrans
}

// Validate checks the `validate` tags of a config struct. The first failing
// field comes back as a perr Config error carrying the env key as its field.
func Validate(s any) error {
	v, trans := validatorSvc()
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(err, perr.ErrorCodeConfig, "config: cannot validate")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return perr.WithField(perr.Configf("config: %s", fe.Translate(trans)), fe.Field())
	}
	return perr.Wrap(err, perr.ErrorCodeConfig, "config: invalid")
}
