// Package profile はサインイン済みユーザーの連絡先プロフィールの保存と参照を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/coliana/internal/metrics"
	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/repository"
	"github.com/hitoshi/coliana/internal/security"
)

// FormSaveUser はプロフィール保存のフォーム種別。
const FormSaveUser = "save-user"

// Service はプロフィールのサービス層。
type Service struct {
	users     repository.UserProfileRepository
	sanitizer *security.TextSanitizer
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserProfileRepository, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		users:     users,
		sanitizer: security.NewTextSanitizer(),
		recorder:  recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Save はメールアドレスをキーにプロフィールを作成または更新する。
// メールアドレスが空の場合は*model.APIError（EMAIL_REQUIRED）を返す。
func (s *Service) Save(ctx context.Context, email, name, phone string) (*model.UserProfile, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		s.recorder.RecordSubmission(FormSaveUser, metrics.ResultError)
		return nil, err
	}

	now := s.now()
	u := &model.UserProfile{
		Email:     normalized,
		Name:      s.sanitizer.Clean(name),
		Phone:     s.sanitizer.Clean(phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		s.recorder.RecordSubmission(FormSaveUser, metrics.ResultError)
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	s.recorder.RecordSubmission(FormSaveUser, metrics.ResultSuccess)
	s.logger.Debug("user profile saved", slog.String("email_domain", domainOf(normalized)))
	return u, nil
}

// Get はメールアドレスでプロフィールを取得する。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, email string) (*model.UserProfile, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return u, nil
}

// NormalizeEmail はメールアドレスを比較用の正規形に変換する。
// 正規形はmodel.CanonicalEmailと同じ。空の場合は*model.APIError（EMAIL_REQUIRED）を返す。
func NormalizeEmail(email string) (string, error) {
	normalized := model.CanonicalEmail(email)
	if normalized == "" {
		return "", model.NewEmailRequiredError()
	}
	return normalized, nil
}

func domainOf(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}
