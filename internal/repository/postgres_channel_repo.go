package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/streamhunter/internal/model"
)

// PostgresChannelRepo はPostgreSQLを使用したチャンネルリポジトリ。
type PostgresChannelRepo struct {
	db *sql.DB
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

// channelColumns はチャンネルのSELECT句で使用するカラム一覧。
const channelColumns = `id, name, logo_url, keywords, category, priority,
       description, is_active, created_at, updated_at`

// scanChannel は1行分のチャンネルをスキャンする。
func scanChannel(scanner interface{ Scan(...any) error }) (*model.Channel, error) {
	ch := &model.Channel{}
	var logoURL, category, description sql.NullString
	var keywordsJSON []byte

	err := scanner.Scan(
		&ch.ID, &ch.Name, &logoURL, &keywordsJSON, &category, &ch.Priority,
		&description, &ch.IsActive, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ch.LogoURL = nullStringValue(logoURL)
	ch.Category = nullStringValue(category)
	ch.Description = nullStringValue(description)

	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &ch.Keywords); err != nil {
			return nil, fmt.Errorf("キーワードのデコードに失敗しました: %w", err)
		}
	}

	return ch, nil
}

// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)

	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	return ch, nil
}

// FindByName はチャンネル名でチャンネルを検索する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByName(ctx context.Context, name string) (*model.Channel, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE name = $1`, name)

	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネル名によるチャンネルの検索に失敗しました: %w", err)
	}
	return ch, nil
}

// Create はチャンネルを作成する。
func (r *PostgresChannelRepo) Create(ctx context.Context, channel *model.Channel) error {
	keywordsJSON, err := json.Marshal(channel.Keywords)
	if err != nil {
		return fmt.Errorf("キーワードのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO channels (id, name, logo_url, keywords, category, priority,
		                       description, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		channel.ID, channel.Name, nullString(channel.LogoURL), keywordsJSON,
		nullString(channel.Category), channel.Priority,
		nullString(channel.Description), channel.IsActive,
		channel.CreatedAt, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チャンネルの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はチャンネル情報を更新する。
func (r *PostgresChannelRepo) Update(ctx context.Context, channel *model.Channel) error {
	keywordsJSON, err := json.Marshal(channel.Keywords)
	if err != nil {
		return fmt.Errorf("キーワードのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE channels SET
		    name = $2, logo_url = $3, keywords = $4, category = $5,
		    priority = $6, description = $7, is_active = $8, updated_at = $9
		 WHERE id = $1`,
		channel.ID, channel.Name, nullString(channel.LogoURL), keywordsJSON,
		nullString(channel.Category), channel.Priority,
		nullString(channel.Description), channel.IsActive, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チャンネルの更新に失敗しました: %w", err)
	}
	return nil
}

// List はチャンネル一覧を返す。
func (r *PostgresChannelRepo) List(ctx context.Context, category string, activeOnly bool) ([]*model.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE 1=1`
	args := []any{}

	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	query += ` ORDER BY category, priority DESC, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("チャンネルのスキャンに失敗しました: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネル一覧の走査に失敗しました: %w", err)
	}

	return channels, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取り出す。NULLの場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
