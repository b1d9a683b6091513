package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// DateLayout はリクエストで受け付ける予約日の形式
const DateLayout = "2006-01-02"

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// "date" タグで YYYY-MM-DD 形式の文字列を検証できる
func NewValidator() *CustomValidator {
	v := validator.New()
	// タグ名と関数は固定のため失敗しない
	_ = v.RegisterValidation("date", validateDate)
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": "+fe.Tag())
	}
	return echo.NewHTTPError(http.StatusBadRequest, "入力値が不正です ("+strings.Join(msgs, ", ")+")")
}

// ParseDate は YYYY-MM-DD 形式の予約日を UTC の日付として解釈する
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}
