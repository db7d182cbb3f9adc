// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, integration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeEmailRequired   = "EMAIL_REQUIRED"
	ErrCodeUnknownFormType = "UNKNOWN_FORM_TYPE"
	ErrCodeBodyRequired    = "BODY_REQUIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Send a JSON object with a formType field.",
	}
}

// NewEmailRequiredError はメールアドレス未指定エラーを生成する。
// メッセージは既存フロントエンドが表示している文言に合わせる。
func NewEmailRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRequired,
		Message:  "Email required",
		Category: "validation",
		Action:   "Provide the email address of the signed-in user.",
	}
}

// NewUnknownFormTypeError は未知のformTypeエラーを生成する。
func NewUnknownFormTypeError(formType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownFormType,
		Message:  fmt.Sprintf("Unknown formType: %q", formType),
		Category: "validation",
		Action:   "Use one of client, provider, concierge, save-user, create-web-call.",
	}
}

// NewBodyRequiredError はリクエストボディが空の場合のエラーを生成する。
func NewBodyRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeBodyRequired,
		Message:  "Request body is required",
		Category: "validation",
		Action:   "Send the form payload as a JSON body.",
	}
}

// NewRateLimitedError は送信回数の上限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many submissions. Please try again later.",
		Category: "system",
		Action:   "Wait for the time given in Retry-After and submit again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal error",
		Category: "system",
		Action:   "Try again later.",
	}
}
