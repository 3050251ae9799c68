package commission

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dumeirei/marketplace-commission/internal/common/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// validateRequest 校验请求结构体，返回第一个不合法字段
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.ErrInvalidInput.WithMessage(validationMessage(fe)).WithError(err)
	}
	return errors.ErrInvalidInput.WithError(err)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s 不能为空", fe.Field())
	case "gte", "min":
		return fmt.Sprintf("%s 不能小于 %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s 不能大于 %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s 必须是 [%s] 之一", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s 不合法", fe.Field())
}
