package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront-service/internal/apperror"
	"storefront-service/internal/util"
)

type successResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    interface{} `json:"meta,omitempty"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []apperror.Detail `json:"details,omitempty"`
}

type errorMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
	Meta    errorMeta `json:"meta"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, successResponse{Success: true, Data: data})
}

func respondList(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, successResponse{Success: true, Data: data, Meta: meta})
}

// respondError writes the error envelope. Internal failures are logged and
// reported without their cause.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	body := errorBody{Code: apperror.Code(kind), Message: "Internal server error"}

	var appErr *apperror.Error
	if kind == apperror.KindInternal {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	} else if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	c.AbortWithStatusJSON(apperror.HTTPStatus(kind), errorResponse{
		Success: false,
		Error:   body,
		Meta:    errorMeta{Timestamp: time.Now().UTC()},
	})
}

// bindingError converts a gin binding failure into a validation error with
// one detail per offending field
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("Invalid request").
			WithDetails(apperror.Detail{Message: err.Error()})
	}

	details := make([]apperror.Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperror.Detail{
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
			Value:   fe.Value(),
		})
	}
	return apperror.Validation("Validation failed").WithDetails(details...)
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

var registerTagNames sync.Once

// useWireFieldNames makes validation errors report json/form names instead
// of Go field names
func useWireFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}
