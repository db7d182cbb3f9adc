package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/coliana/internal/intake"
	"github.com/hitoshi/coliana/internal/metrics"
	"github.com/hitoshi/coliana/internal/middleware"
	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/profile"
	"github.com/hitoshi/coliana/internal/retell"
)

// FormCreateWebCall は音声通話作成のフォーム種別。
const FormCreateWebCall = "create-web-call"

// DefaultMaxBodyBytes はリクエストボディの既定上限。
const DefaultMaxBodyBytes int64 = 1 << 20

// FormTypePolicy はformTypeが未指定または未知の場合の扱いを表す。
type FormTypePolicy string

const (
	// FormTypePolicyClient はクライアント送信として処理する。
	FormTypePolicyClient FormTypePolicy = "client"
	// FormTypePolicyReject は400で拒否する。
	FormTypePolicyReject FormTypePolicy = "reject"
)

// IntakeService は送信ハンドラーが必要とする受付サービスのインターフェース。
type IntakeService interface {
	SubmitClient(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error)
	SubmitProvider(ctx context.Context, p *model.ProviderRecord) error
	SubmitConcierge(ctx context.Context, r *model.ConciergeRequest) error
}

// ProfileService はプロフィールの保存と参照を行うサービスのインターフェース。
type ProfileService interface {
	Save(ctx context.Context, email, name, phone string) (*model.UserProfile, error)
	Get(ctx context.Context, email string) (*model.UserProfile, error)
}

// WebCallCreator は音声通話APIのクライアントのインターフェース。
type WebCallCreator interface {
	CreateWebCall(ctx context.Context, req retell.WebCallRequest) (json.RawMessage, error)
}

// SubmissionConfig は送信ハンドラーの設定。
type SubmissionConfig struct {
	UnknownFormTypePolicy FormTypePolicy
	DiagnosticPayload     bool  // 空ボディを疎通確認用の送信として扱う
	MaxBodyBytes          int64 // 0以下の場合はDefaultMaxBodyBytes
}

// SubmissionHandler はPOST / のフォーム送信をformTypeで振り分けるHTTPハンドラー。
type SubmissionHandler struct {
	intake   IntakeService
	profiles ProfileService
	calls    WebCallCreator
	recorder metrics.Recorder
	logger   *slog.Logger
	config   SubmissionConfig
}

// NewSubmissionHandler はSubmissionHandlerを生成する。
func NewSubmissionHandler(
	intakeSvc IntakeService,
	profiles ProfileService,
	calls WebCallCreator,
	recorder metrics.Recorder,
	logger *slog.Logger,
	config SubmissionConfig,
) *SubmissionHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.UnknownFormTypePolicy == "" {
		config.UnknownFormTypePolicy = FormTypePolicyClient
	}
	return &SubmissionHandler{
		intake:   intakeSvc,
		profiles: profiles,
		calls:    calls,
		recorder: recorder,
		logger:   logger,
		config:   config,
	}
}

// successResponse は保存系フォームの成功レスポンス。
type successResponse struct {
	Result string `json:"result"`
	Type   string `json:"type,omitempty"`
}

// clientResponse はクライアント送信の成功レスポンス。マッチが0件でもmatchesは空配列。
type clientResponse struct {
	Result  string            `json:"result"`
	Type    string            `json:"type"`
	Matches []matchResultJSON `json:"matches"`
}

// webCallErrorResponse は音声通話APIの失敗を200で返す際のボディ。
type webCallErrorResponse struct {
	Error string `json:"error"`
}

// Submit はフォーム送信を処理する。
// POST /
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError("body too large"))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("failed to read body"))
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if !h.config.DiagnosticPayload {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBodyRequiredError())
			return
		}
		h.logger.Warn("empty request body, using diagnostic payload",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		body = []byte(diagnosticPayload)
	}

	var req submissionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON"))
		return
	}

	switch formType := strings.TrimSpace(string(req.FormType)); formType {
	case intake.FormClient:
		h.submitClient(w, r, &req)
	case intake.FormProvider:
		h.submitProvider(w, r, &req)
	case intake.FormConcierge:
		h.submitConcierge(w, r, &req)
	case profile.FormSaveUser:
		h.saveUser(w, r, &req)
	case FormCreateWebCall:
		h.createWebCall(w, r, &req)
	default:
		h.recorder.RecordUnrecognizedFormType()
		if h.config.UnknownFormTypePolicy == FormTypePolicyReject {
			h.logger.Warn("rejected unrecognized formType", slog.String("form_type", formType))
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUnknownFormTypeError(formType))
			return
		}
		h.logger.Warn("unrecognized formType, handling as client submission", slog.String("form_type", formType))
		h.submitClient(w, r, &req)
	}
}

func (h *SubmissionHandler) submitClient(w http.ResponseWriter, r *http.Request, req *submissionRequest) {
	matches, err := h.intake.SubmitClient(r.Context(), req.clientIntake())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientResponse{
		Result:  "success",
		Type:    intake.FormClient,
		Matches: toMatchResultsJSON(matches),
	})
}

func (h *SubmissionHandler) submitProvider(w http.ResponseWriter, r *http.Request, req *submissionRequest) {
	if err := h.intake.SubmitProvider(r.Context(), req.providerRecord()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Result: "success", Type: intake.FormProvider})
}

func (h *SubmissionHandler) submitConcierge(w http.ResponseWriter, r *http.Request, req *submissionRequest) {
	if err := h.intake.SubmitConcierge(r.Context(), req.conciergeRequest()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Result: "success", Type: intake.FormConcierge})
}

func (h *SubmissionHandler) saveUser(w http.ResponseWriter, r *http.Request, req *submissionRequest) {
	if _, err := h.profiles.Save(r.Context(), string(req.Email), string(req.Name), string(req.Phone)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Result: "success"})
}

// createWebCall は音声通話APIの応答をそのまま返す。
// 失敗時もフロントエンドの期待に合わせて200と{error}で応答する。
func (h *SubmissionHandler) createWebCall(w http.ResponseWriter, r *http.Request, req *submissionRequest) {
	start := time.Now()
	raw, err := h.calls.CreateWebCall(r.Context(), req.webCallRequest())
	if err != nil {
		h.recorder.RecordWebCall(metrics.ResultError, time.Since(start))
		h.recorder.RecordSubmission(FormCreateWebCall, metrics.ResultError)
		h.logger.Warn("web call creation failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, webCallErrorResponse{Error: err.Error()})
		return
	}
	h.recorder.RecordWebCall(metrics.ResultSuccess, time.Since(start))
	h.recorder.RecordSubmission(FormCreateWebCall, metrics.ResultSuccess)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外は内部エラーとしてログに詳細を残し、一般的なメッセージを返す。
func (h *SubmissionHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	logger.Error("internal server error",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeEmailRequired,
		model.ErrCodeUnknownFormType, model.ErrCodeBodyRequired:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
