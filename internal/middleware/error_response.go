package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/coliana/internal/model"
)

// ResultError はエラー応答のresultフィールドの値。
const ResultError = "error"

// ErrorResponseBody はエラーレスポンスの統一フォーマット。
// フロントエンドはresultとmessageのみを参照する。code以降は診断用。
type ErrorResponseBody struct {
	Result   string `json:"result"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Action   string `json:"action,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Result:   ResultError,
		Message:  apiErr.Message,
		Code:     apiErr.Code,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、呼び出し元には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
