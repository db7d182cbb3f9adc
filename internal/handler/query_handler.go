package handler

import (
	"embed"
	"log/slog"
	"net/http"

	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/options"
)

//go:embed static
var staticFiles embed.FS

// QueryHandler はGET / のクエリパラメータによる振り分けを行うHTTPハンドラー。
type QueryHandler struct {
	profiles ProfileService
	reg      *options.Registry
	logger   *slog.Logger
}

// NewQueryHandler はQueryHandlerを生成する。
func NewQueryHandler(profiles ProfileService, reg *options.Registry, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		profiles: profiles,
		reg:      reg,
		logger:   logger,
	}
}

// userProfileResponse はgetUserProfileのレスポンス。未登録の場合userはnull。
type userProfileResponse struct {
	Result string           `json:"result"`
	User   *userProfileJSON `json:"user"`
}

// Query はGETリクエストを処理する。
// GET /?swagger=true             Swagger UI
// GET /?format=openapi           OpenAPI文書
// GET /?action=getUserProfile    プロフィール参照
// GET /?action=getFormOptions    選択肢レジストリ
// GET /                          ランディングページ
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("swagger") == "true":
		h.serveStatic(w, "static/swagger.html", "text/html; charset=utf-8")
	case q.Get("format") == "openapi":
		h.serveStatic(w, "static/openapi.json", "application/json")
	case q.Get("action") == "getUserProfile":
		h.getUserProfile(w, r, q.Get("email"))
	case q.Get("action") == "getFormOptions":
		writeJSON(w, http.StatusOK, h.reg)
	default:
		h.serveStatic(w, "static/index.html", "text/html; charset=utf-8")
	}
}

func (h *QueryHandler) getUserProfile(w http.ResponseWriter, r *http.Request, email string) {
	u, err := h.profiles.Get(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	resp := userProfileResponse{Result: "success"}
	if u != nil {
		resp.User = toUserProfileJSON(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QueryHandler) serveStatic(w http.ResponseWriter, name, contentType string) {
	data, err := staticFiles.ReadFile(name)
	if err != nil {
		h.logger.Error("embedded asset missing", slog.String("name", name), slog.String("error", err.Error()))
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func toUserProfileJSON(u *model.UserProfile) *userProfileJSON {
	return &userProfileJSON{
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
	}
}
