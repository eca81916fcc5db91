package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/phone"
)

const (
	msgValidationFailed = "اطلاعات ارسال‌شده معتبر نیست"
	msgBodyInvalid      = "بدنه درخواست معتبر نیست"
	msgBodyEmpty        = "بدنه درخواست خالی است"
	msgBodyTooLarge     = "حجم بدنه درخواست بیش از حد مجاز است"

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// ir_mobile accepts any spelling pkg/phone can normalize to 989XXXXXXXXX.
	_ = v.RegisterValidation("ir_mobile", func(fl validator.FieldLevel) bool {
		_, err := phone.NormalizeMobile(fl.Field().String())
		return err == nil
	})
	return v
}

// DecodeJSONBody decodes a strict JSON body into dest and runs struct validation.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return decodeError(err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func decodeError(err error) *pkgerrors.Error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, msgBodyEmpty)
	case errors.As(err, &tooLarge):
		return pkgerrors.New(pkgerrors.CodeValidation, msgBodyTooLarge).WithDetails(map[string]any{"limit_bytes": tooLarge.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgBodyInvalid).WithDetails(map[string]any{"error": err.Error()})
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, msgValidationFailed).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgValidationFailed)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "این فیلد الزامی است"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("حداقل %s کاراکتر لازم است", fe.Param())
		}
		return fmt.Sprintf("حداقل مقدار مجاز %s است", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("حداکثر %s کاراکتر مجاز است", fe.Param())
		}
		return fmt.Sprintf("حداکثر مقدار مجاز %s است", fe.Param())
	case "email":
		return "ایمیل معتبر نیست"
	case "numeric":
		return "فقط عدد مجاز است"
	case "uuid", "uuid4":
		return "شناسه معتبر نیست"
	case "oneof":
		return fmt.Sprintf("مقدار باید یکی از %s باشد", fe.Param())
	case "ir_mobile":
		return "شماره موبایل معتبر نیست"
	}
	return "مقدار معتبر نیست"
}
