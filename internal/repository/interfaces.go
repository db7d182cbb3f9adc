// Package repository はデータ永続化のインターフェースと、
// PostgreSQL版およびワークブック（ワイドレイアウト）版の実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/coliana/internal/model"
)

// ClientRepository はクライアント受付内容の永続化インターフェース。追記のみ。
type ClientRepository interface {
	// Create は受付内容を1件追記する。
	Create(ctx context.Context, c *model.ClientIntake) error

	// List は全受付内容を登録順で返す。
	List(ctx context.Context) ([]*model.ClientIntake, error)
}

// ProviderRepository はプロバイダー登録の永続化インターフェース。追記のみ。
type ProviderRepository interface {
	// Create は登録内容を1件追記する。再申請も新しい行として追記する。
	Create(ctx context.Context, p *model.ProviderRecord) error

	// ListAll は全プロバイダーを登録順で返す。
	// 照合のたびに呼ばれ、キャッシュは持たない。
	ListAll(ctx context.Context) ([]*model.ProviderRecord, error)
}

// MatchRepository はマッチング結果スナップショットの永続化インターフェース。
type MatchRepository interface {
	// CreateBatch は複数の照合結果をまとめて追記する。空の場合は何もしない。
	CreateBatch(ctx context.Context, records []*model.MatchRecord) error

	// List は全照合結果を登録順で返す。
	List(ctx context.Context) ([]*model.MatchRecord, error)
}

// ConciergeRepository はコンシェルジュ依頼の永続化インターフェース。
type ConciergeRepository interface {
	// Create は依頼を1件追記する。
	Create(ctx context.Context, r *model.ConciergeRequest) error

	// List は全依頼を登録順で返す。
	List(ctx context.Context) ([]*model.ConciergeRequest, error)
}

// UserProfileRepository はユーザープロフィールの永続化インターフェース。
// 正規化済みメールアドレスごとに高々1行であることを保証する。
type UserProfileRepository interface {
	// FindByEmail は正規化済みメールアドレスでプロフィールを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.UserProfile, error)

	// Upsert はプロフィールを作成または更新する。
	// 既存行がある場合は名前と電話番号を上書きし、CreatedAtは既存の値をuに設定する。
	// 同一メールアドレスへの同時呼び出しでも行は1つに保たれる。
	Upsert(ctx context.Context, u *model.UserProfile) error

	// List は全プロフィールを返す。
	List(ctx context.Context) ([]*model.UserProfile, error)
}

// Set はバックエンドごとのリポジトリ一式。
type Set struct {
	Clients   ClientRepository
	Providers ProviderRepository
	Matches   MatchRepository
	Concierge ConciergeRepository
	Users     UserProfileRepository
}
