// Package validation wires request validation into gin's binding engine and
// checks optional backends at startup.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/util"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)
	registerOnce    sync.Once
)

// Register installs the custom tags on gin's validator and makes errors
// report json field names. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("username", validUsername)
		_ = v.RegisterValidation("notblank", notBlank)
	})
}

func jsonFieldName(fld reflect.StructField) string {
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

// validUsername accepts 3-30 lowercase letters, digits, dots and underscores.
func validUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// notBlank rejects strings that are empty after trimming whitespace.
func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Bind binds the request body (JSON or form) into dst. On failure it writes a
// 400 envelope listing each invalid field and returns false.
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBind(dst); err != nil {
		RespondBindError(c, err)
		return false
	}
	return true
}

// BindJSON is Bind restricted to a JSON body.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondBindError(c, err)
		return false
	}
	return true
}

// RespondBindError converts binding and validation errors into field errors.
func RespondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	util.RespondValidationErrors(c, FieldErrors(verrs))
}

// FieldErrors turns validator output into API errors, one per field.
func FieldErrors(verrs validator.ValidationErrors) []*errors.APIError {
	out := make([]*errors.APIError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, errors.ValidationError(fe.Field(), message(fe)))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3-30 characters of lowercase letters, digits, dots or underscores"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid id"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
