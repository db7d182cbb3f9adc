// Package intake はクライアント受付、プロバイダー登録、コンシェルジュ依頼の
// 送信処理を提供する。
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/coliana/internal/match"
	"github.com/hitoshi/coliana/internal/metrics"
	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/options"
	"github.com/hitoshi/coliana/internal/repository"
	"github.com/hitoshi/coliana/internal/security"
)

// フォーム種別
const (
	FormClient    = "client"
	FormProvider  = "provider"
	FormConcierge = "concierge"
)

// linkNormalizer はプロバイダーのリンクを検証・正規化するインターフェース。
type linkNormalizer interface {
	NormalizeLink(raw string) (string, error)
}

// Service は送信処理のサービス層。
// 保存はすべて追記のみで、既存行を更新することはない。
type Service struct {
	clients   repository.ClientRepository
	providers repository.ProviderRepository
	matches   repository.MatchRepository
	concierge repository.ConciergeRepository

	reg       *options.Registry
	engine    *match.Engine
	sanitizer *security.TextSanitizer
	links     linkNormalizer
	recorder  metrics.Recorder
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewService(repos *repository.Set, reg *options.Registry, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		clients:   repos.Clients,
		providers: repos.Providers,
		matches:   repos.Matches,
		concierge: repos.Concierge,
		reg:       reg,
		engine:    match.NewEngine(reg),
		sanitizer: security.NewTextSanitizer(),
		links:     security.NewURLGuard(),
		recorder:  recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// SubmitClient はクライアントの受付内容を保存し、適合するプロバイダーを返す。
//
// 処理の流れ:
//  1. 自由記述の無害化と選択肢の正規化
//  2. 受付内容の追記（一致が0件でも保存される）
//  3. 最新のプロバイダー一覧で照合
//  4. 照合結果のスナップショットを追記
func (s *Service) SubmitClient(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
	// 1. 正規化
	c.ID = s.newID()
	c.SubmittedAt = s.now()
	c.Name = s.sanitizer.Clean(c.Name)
	c.Email = s.sanitizer.Clean(c.Email)
	c.Phone = s.sanitizer.Clean(c.Phone)
	c.AgeGroup = s.sanitizer.Clean(c.AgeGroup)
	c.Location = s.sanitizer.Clean(c.Location)
	c.Formats = s.canonicalize(FormClient, "format", s.reg.ServiceFormats, c.Formats)
	c.SupportTypes = s.canonicalize(FormClient, "supportTypes", s.reg.SupportTypes, c.SupportTypes)

	// 2. 受付内容の追記
	if err := s.clients.Create(ctx, c); err != nil {
		s.recorder.RecordSubmission(FormClient, metrics.ResultError)
		return nil, fmt.Errorf("failed to store client intake: %w", err)
	}

	// 3. 照合
	providers, err := s.providers.ListAll(ctx)
	if err != nil {
		s.recorder.RecordSubmission(FormClient, metrics.ResultError)
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	results := s.engine.Match(c, providers)

	// 4. スナップショットの追記
	if len(results) > 0 {
		now := s.now()
		records := make([]*model.MatchRecord, 0, len(results))
		for _, r := range results {
			records = append(records, &model.MatchRecord{
				ID:          s.newID(),
				CreatedAt:   now,
				ClientID:    c.ID,
				ClientName:  c.Name,
				ClientEmail: c.Email,
				ClientPhone: c.Phone,
				MatchResult: r,
			})
		}
		if err := s.matches.CreateBatch(ctx, records); err != nil {
			s.recorder.RecordSubmission(FormClient, metrics.ResultError)
			return nil, fmt.Errorf("failed to store matches: %w", err)
		}
	}

	s.recorder.RecordSubmission(FormClient, metrics.ResultSuccess)
	s.recorder.RecordMatches(len(results))
	s.logger.Info("client intake stored",
		slog.String("client_id", c.ID),
		slog.Int("providers", len(providers)),
		slog.Int("matches", len(results)),
	)

	return results, nil
}

// SubmitProvider はプロバイダーの登録内容を追記する。
// 安全でないWebサイト・予約リンクは空にして保存する。
func (s *Service) SubmitProvider(ctx context.Context, p *model.ProviderRecord) error {
	p.ID = s.newID()
	p.SubmittedAt = s.now()
	p.Name = s.sanitizer.Clean(p.Name)
	p.Email = s.sanitizer.Clean(p.Email)
	p.Phone = s.sanitizer.Clean(p.Phone)
	p.PracticeName = s.sanitizer.Clean(p.PracticeName)
	p.Website = s.normalizeLink(FormProvider, "website", p.Website)
	p.BookingLink = s.normalizeLink(FormProvider, "bookingLink", p.BookingLink)
	p.LicenseType = s.sanitizer.Clean(p.LicenseType)
	p.LicenseNumber = s.sanitizer.Clean(p.LicenseNumber)
	p.YearsExperience = s.sanitizer.Clean(p.YearsExperience)
	p.Location = s.sanitizer.Clean(p.Location)
	p.Bio = s.sanitizer.Clean(p.Bio)

	p.Specialties = s.canonicalize(FormProvider, "specialties", s.reg.Specialties, p.Specialties)
	p.AgeGroups = s.canonicalize(FormProvider, "ageGroups", s.reg.AgeGroups, p.AgeGroups)
	p.TreatmentApproaches = s.canonicalize(FormProvider, "treatmentApproaches", s.reg.TreatmentApproaches, p.TreatmentApproaches)
	p.Languages = s.canonicalize(FormProvider, "languages", s.reg.Languages, p.Languages)
	p.ServiceFormats = s.canonicalize(FormProvider, "serviceFormats", s.reg.ServiceFormats, p.ServiceFormats)
	p.InsuranceAccepted = s.canonicalize(FormProvider, "insuranceAccepted", s.reg.InsuranceOptions, p.InsuranceAccepted)

	if err := s.providers.Create(ctx, p); err != nil {
		s.recorder.RecordSubmission(FormProvider, metrics.ResultError)
		return fmt.Errorf("failed to store provider: %w", err)
	}

	s.recorder.RecordSubmission(FormProvider, metrics.ResultSuccess)
	s.logger.Info("provider stored",
		slog.String("provider_id", p.ID),
		slog.Int("specialties", len(p.Specialties)),
	)
	return nil
}

// SubmitConcierge はクライアントが選んだプロバイダーとの橋渡し依頼を追記する。
func (s *Service) SubmitConcierge(ctx context.Context, r *model.ConciergeRequest) error {
	r.ID = s.newID()
	r.CreatedAt = s.now()
	r.ClientName = s.sanitizer.Clean(r.ClientName)
	r.ClientEmail = s.sanitizer.Clean(r.ClientEmail)
	r.ClientPhone = s.sanitizer.Clean(r.ClientPhone)
	r.ClientAgeGroup = s.sanitizer.Clean(r.ClientAgeGroup)
	r.ClientLocation = s.sanitizer.Clean(r.ClientLocation)
	r.ClientSupportTypes = s.canonicalize(FormConcierge, "client.supportTypes", s.reg.SupportTypes, r.ClientSupportTypes)
	r.ClientFormats = s.canonicalize(FormConcierge, "client.format", s.reg.ServiceFormats, r.ClientFormats)

	p := &r.Provider
	p.ProviderName = s.sanitizer.Clean(p.ProviderName)
	p.ProviderEmail = s.sanitizer.Clean(p.ProviderEmail)
	p.ProviderPhone = s.sanitizer.Clean(p.ProviderPhone)
	p.PracticeName = s.sanitizer.Clean(p.PracticeName)
	p.Location = s.sanitizer.Clean(p.Location)
	p.Bio = s.sanitizer.Clean(p.Bio)
	p.BookingLink = s.normalizeLink(FormConcierge, "provider.bookingLink", p.BookingLink)
	p.WebsiteLink = s.normalizeLink(FormConcierge, "provider.websiteLink", p.WebsiteLink)
	p.MatchedSupportTypes = s.canonicalize(FormConcierge, "provider.matchedSupportTypes", s.reg.SupportTypes, p.MatchedSupportTypes)
	p.MatchedFormats = s.canonicalize(FormConcierge, "provider.matchedFormats", s.reg.ServiceFormats, p.MatchedFormats)

	if err := s.concierge.Create(ctx, r); err != nil {
		s.recorder.RecordSubmission(FormConcierge, metrics.ResultError)
		return fmt.Errorf("failed to store concierge request: %w", err)
	}

	s.recorder.RecordSubmission(FormConcierge, metrics.ResultSuccess)
	s.logger.Info("concierge request stored",
		slog.String("request_id", r.ID),
		slog.String("provider_email", p.ProviderEmail),
	)
	return nil
}

// canonicalize は選択値をレジストリ順に並べ、未知の値を捨てる。
// 捨てた値はワイドレイアウトに列がないため保存できない。
func (s *Service) canonicalize(formType, field string, all, selected []string) []string {
	kept, dropped := options.Canonicalize(all, selected)
	if len(dropped) > 0 {
		s.logger.Warn("dropping unknown option values",
			slog.String("form_type", formType),
			slog.String("field", field),
			slog.Any("values", dropped),
		)
	}
	return kept
}

func (s *Service) normalizeLink(formType, field, raw string) string {
	link, err := s.links.NormalizeLink(raw)
	if err != nil {
		s.logger.Warn("discarding unsafe link",
			slog.String("form_type", formType),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return link
}
