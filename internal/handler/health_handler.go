package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はストレージの疎通確認を行うインターフェース。
// *sql.DBはPingContextでこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthTimeout はヘルスチェック1回あたりの待ち時間の上限。
const healthTimeout = 3 * time.Second

// NewHealthHandler は/healthのハンドラーを返す。checkerがnilの場合は常に200を返す。
func NewHealthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				logger.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
