package client

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adamwoolhether/asynchttp/client/pool"
	"github.com/adamwoolhether/asynchttp/client/throttle"
)

// Config is the validated settings of a [Client], assembled from the
// options passed to [Build].
type Config struct {
	RequestTimeout       time.Duration    `json:"requestTimeout" validate:"gte=0"`
	ReadIdleTimeout      time.Duration    `json:"readIdleTimeout" validate:"gte=0"`
	ConnectTimeout       time.Duration    `json:"connectTimeout" validate:"gte=0"`
	PooledIdleTimeout    time.Duration    `json:"pooledIdleTimeout" validate:"gte=0"`
	MaxIdlePerHost       int              `json:"maxIdlePerHost" validate:"gte=0"`
	FollowRedirects      bool             `json:"followRedirects"`
	MaxRedirects         int              `json:"maxRedirects" validate:"gte=0,lte=100"`
	Strict302            bool             `json:"strict302"`
	CrossHostCredentials bool             `json:"crossHostCredentials"`
	MaxConnections       int              `json:"maxConnections" validate:"gte=0"`
	MaxConnectionsWait   time.Duration    `json:"maxConnectionsWait" validate:"gte=0"`
	UserAgent            string           `json:"userAgent" validate:"omitempty,printascii"`
	Throttle             *throttle.Config `json:"throttle" validate:"omitempty"`
	Proxy                *pool.Proxy      `json:"proxy" validate:"omitempty"`
}

// DefaultConfig is the configuration of a Client built without options.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  defaultRequestTimeout,
		FollowRedirects: true,
		MaxRedirects:    defaultMaxRedirects,
		UserAgent:       defaultUserAgent,
	}
}

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("client: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Validate checks c against its declared tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Field(),
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fields
	}

	return nil
}

// FieldError represents a single validation error for a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	default:
		return verror.Translate(translator)
	}
}

// Fields returns the errors keyed by field name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}
