package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/scan-console/pkg/errors"
)

// maxBarcodeLength bounds one scanned payload
const maxBarcodeLength = 512

var scanModes = []string{"receive", "pick", "count", "items"}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// InitValidator registers the scan_mode and barcode tags on a standalone
// validator and on gin's binding engine. Field errors are keyed by json name.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		registerScanTags(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerScanTags(v)
		}
	})
	return validate
}

func registerScanTags(v *validator.Validate) {
	_ = v.RegisterValidation("scan_mode", validateScanMode)
	_ = v.RegisterValidation("barcode", validateBarcode)
	v.RegisterTagNameFunc(jsonTagName)
}

func jsonTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateScanMode(fl validator.FieldLevel) bool {
	mode := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	for _, m := range scanModes {
		if m == mode {
			return true
		}
	}
	return false
}

// validateBarcode accepts printable text without control characters.
// Blank values pass so "required" stays the only emptiness check.
func validateBarcode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) > maxBarcodeLength {
		return false
	}
	return strings.IndexFunc(value, func(r rune) bool { return unicode.IsControl(r) && r != '\t' }) < 0
}

var fieldMessages = map[string]func(param string) string{
	"required":  func(string) string { return "is required" },
	"min":       func(p string) string { return "must be at least " + p },
	"max":       func(p string) string { return "must be at most " + p },
	"scan_mode": func(string) string { return "must be one of: " + strings.Join(scanModes, ", ") },
	"barcode":   func(string) string { return fmt.Sprintf("must be printable text of at most %d characters", maxBarcodeLength) },
}

// ValidationErrorFormatter maps each failed field to a readable message
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return fields
	}
	for _, e := range validationErrors {
		msg := "is invalid"
		if format, ok := fieldMessages[e.Tag()]; ok {
			msg = format(e.Param())
		}
		fields[e.Field()] = msg
	}
	return fields
}

// BindAndValidate binds the JSON body into obj. Tag failures become a 400
// with field details, undecodable bodies a plain 400.
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
	}
	return errors.ErrBadRequest("invalid request body: " + err.Error())
}

// ContentType rejects non-JSON bodies on POST, PUT and PATCH with 415
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength > 0 && !strings.HasPrefix(c.GetHeader("Content-Type"), "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
