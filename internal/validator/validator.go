package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalidDocument marks a stored document that failed schema validation.
var ErrInvalidDocument = errors.New("invalid document")

var (
	trans    ut.Translator
	docs     *govalidator.Validate
	docsOnce sync.Once
)

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		configure(v)
	}
}

func configure(v *govalidator.Validate) {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
}

func documents() *govalidator.Validate {
	docsOnce.Do(func() {
		docs = govalidator.New(govalidator.WithRequiredStructEnabled())
		configure(docs)
	})
	return docs
}

// Document validates a struct read from the store against its `validate`
// tags. Failures wrap ErrInvalidDocument and list the offending fields.
func Document(doc interface{}) error {
	err := documents().Struct(doc)
	if err == nil {
		return nil
	}
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(fields, ", "))
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) && trans != nil {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
