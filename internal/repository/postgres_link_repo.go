package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

// PostgresLinkRepo はPostgreSQLを使用したリンクリポジトリ。
type PostgresLinkRepo struct {
	db *sql.DB
}

// NewPostgresLinkRepo はPostgresLinkRepoを生成する。
func NewPostgresLinkRepo(db *sql.DB) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: db}
}

// linkColumns はリンクのSELECT句で使用するカラム一覧。
const linkColumns = `id, channel_id, url, source, status, quality_score,
       consecutive_failures, last_response_time_ms, error_message,
       last_checked_at, last_success_at, created_at, updated_at`

// scanLink は1行分のリンクをスキャンする。
func scanLink(scanner interface{ Scan(...any) error }) (*model.Link, error) {
	link := &model.Link{}
	var qualityScore sql.NullInt64
	var lastResponseTimeMs sql.NullInt64
	var errorMessage sql.NullString
	var lastCheckedAt, lastSuccessAt sql.NullTime

	err := scanner.Scan(
		&link.ID, &link.ChannelID, &link.URL, &link.Source, &link.Status,
		&qualityScore, &link.ConsecutiveFailures, &lastResponseTimeMs,
		&errorMessage, &lastCheckedAt, &lastSuccessAt,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if qualityScore.Valid {
		v := int(qualityScore.Int64)
		link.QualityScore = &v
	}
	if lastResponseTimeMs.Valid {
		v := lastResponseTimeMs.Int64
		link.LastResponseTimeMs = &v
	}
	link.ErrorMessage = nullStringValue(errorMessage)
	if lastCheckedAt.Valid {
		t := lastCheckedAt.Time
		link.LastCheckedAt = &t
	}
	if lastSuccessAt.Valid {
		t := lastSuccessAt.Time
		link.LastSuccessAt = &t
	}

	return link, nil
}

// FindByID は指定IDのリンクを取得する。見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByID(ctx context.Context, id string) (*model.Link, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = $1`, id)

	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リンクの取得に失敗しました: %w", err)
	}
	return link, nil
}

// UpsertCandidate は収集した候補リンクを冪等に登録する。
// 同一 (channel_id, url) のリンクが既に存在する場合は新規作成せず既存リンクを返す。
// ON CONFLICT DO NOTHINGとRETURNINGの組み合わせは競合時に行を返さないため、
// 挿入が行われなかった場合は再検索する。
func (r *PostgresLinkRepo) UpsertCandidate(ctx context.Context, link *model.Link) (*model.Link, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO links (id, channel_id, url, source, status,
		                    consecutive_failures, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		 ON CONFLICT (channel_id, url) DO NOTHING
		 RETURNING `+linkColumns,
		link.ID, link.ChannelID, link.URL, link.Source,
		model.LinkStatusUnchecked, link.CreatedAt, link.UpdatedAt,
	)

	inserted, err := scanLink(row)
	if err == nil {
		return inserted, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("リンクの登録に失敗しました: %w", err)
	}

	// 既存リンクとの競合: 再検索して既存行を返す
	existing := r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE channel_id = $1 AND url = $2`,
		link.ChannelID, link.URL,
	)
	found, err := scanLink(existing)
	if err != nil {
		return nil, false, fmt.Errorf("既存リンクの検索に失敗しました: %w", err)
	}
	return found, false, nil
}

// ListDueForCheck は検証対象のリンクを取得する。
// status = unchecked、またはlast_checked_atがolderThanより古いリンクを返す。
func (r *PostgresLinkRepo) ListDueForCheck(ctx context.Context, olderThan time.Time, limit int) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links
		 WHERE status = $1 OR last_checked_at IS NULL OR last_checked_at < $2
		 ORDER BY last_checked_at ASC NULLS FIRST
		 LIMIT $3`,
		model.LinkStatusUnchecked, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("検証対象リンクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// ListByChannel はチャンネルのリンク一覧を返す。
func (r *PostgresLinkRepo) ListByChannel(ctx context.Context, channelID string) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links
		 WHERE channel_id = $1
		 ORDER BY quality_score DESC NULLS LAST, last_response_time_ms ASC NULLS LAST`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("チャンネルのリンク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// ListByStatus は指定ステータスのリンク一覧を返す。
func (r *PostgresLinkRepo) ListByStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE status = $1 ORDER BY updated_at DESC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータスによるリンク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

// ListValidOrdered はstatus=validのリンクをプレイリスト選定順で返す。
// 並び順は (チャンネルのpriority desc, quality_score desc, last_response_time_ms asc)。
func (r *PostgresLinkRepo) ListValidOrdered(ctx context.Context, minScore int, categories []string) ([]ValidLink, error) {
	query := `SELECT ` + prefixColumns("l", linkColumns) + `,
	       c.name, c.logo_url, c.category, c.priority,
	       COALESCE((SELECT cr.width || 'x' || cr.height
	                   FROM check_results cr
	                  WHERE cr.link_id = l.id AND cr.outcome = 'success'
	                    AND cr.width IS NOT NULL AND cr.height IS NOT NULL
	                  ORDER BY cr.checked_at DESC LIMIT 1), '')
	  FROM links l
	  JOIN channels c ON c.id = l.channel_id
	 WHERE l.status = $1 AND c.is_active = TRUE`
	args := []any{model.LinkStatusValid}

	if minScore > 0 {
		args = append(args, minScore)
		query += fmt.Sprintf(` AND l.quality_score >= $%d`, len(args))
	}
	if len(categories) > 0 {
		placeholders := ""
		for i, cat := range categories {
			args = append(args, cat)
			if i > 0 {
				placeholders += ", "
			}
			placeholders += fmt.Sprintf("$%d", len(args))
		}
		query += ` AND c.category IN (` + placeholders + `)`
	}
	query += ` ORDER BY c.priority DESC, l.quality_score DESC NULLS LAST,
	                    l.last_response_time_ms ASC NULLS LAST, c.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("有効リンク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []ValidLink
	for rows.Next() {
		var vl ValidLink
		var qualityScore, lastResponseTimeMs sql.NullInt64
		var errorMessage, logoURL, category sql.NullString
		var lastCheckedAt, lastSuccessAt sql.NullTime

		err := rows.Scan(
			&vl.ID, &vl.ChannelID, &vl.URL, &vl.Source, &vl.Status,
			&qualityScore, &vl.ConsecutiveFailures, &lastResponseTimeMs,
			&errorMessage, &lastCheckedAt, &lastSuccessAt,
			&vl.CreatedAt, &vl.UpdatedAt,
			&vl.ChannelName, &logoURL, &category, &vl.ChannelPriority,
			&vl.Resolution,
		)
		if err != nil {
			return nil, fmt.Errorf("有効リンクのスキャンに失敗しました: %w", err)
		}

		if qualityScore.Valid {
			v := int(qualityScore.Int64)
			vl.QualityScore = &v
		}
		if lastResponseTimeMs.Valid {
			v := lastResponseTimeMs.Int64
			vl.LastResponseTimeMs = &v
		}
		vl.ErrorMessage = nullStringValue(errorMessage)
		vl.ChannelLogoURL = nullStringValue(logoURL)
		vl.ChannelCategory = nullStringValue(category)
		if lastCheckedAt.Valid {
			t := lastCheckedAt.Time
			vl.LastCheckedAt = &t
		}
		if lastSuccessAt.Valid {
			t := lastSuccessAt.Time
			vl.LastSuccessAt = &t
		}

		results = append(results, vl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("有効リンク一覧の走査に失敗しました: %w", err)
	}

	return results, nil
}

// UpdateCheckState は検証後のリンク状態を更新する。
func (r *PostgresLinkRepo) UpdateCheckState(ctx context.Context, link *model.Link) error {
	var qualityScore sql.NullInt64
	if link.QualityScore != nil {
		qualityScore = sql.NullInt64{Int64: int64(*link.QualityScore), Valid: true}
	}
	var lastResponseTimeMs sql.NullInt64
	if link.LastResponseTimeMs != nil {
		lastResponseTimeMs = sql.NullInt64{Int64: *link.LastResponseTimeMs, Valid: true}
	}
	var lastCheckedAt, lastSuccessAt sql.NullTime
	if link.LastCheckedAt != nil {
		lastCheckedAt = sql.NullTime{Time: *link.LastCheckedAt, Valid: true}
	}
	if link.LastSuccessAt != nil {
		lastSuccessAt = sql.NullTime{Time: *link.LastSuccessAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE links SET
		    status = $2, quality_score = $3, consecutive_failures = $4,
		    last_response_time_ms = $5, error_message = $6,
		    last_checked_at = $7, last_success_at = $8, updated_at = $9
		 WHERE id = $1`,
		link.ID, link.Status, qualityScore, link.ConsecutiveFailures,
		lastResponseTimeMs, nullString(link.ErrorMessage),
		lastCheckedAt, lastSuccessAt, link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リンク状態の更新に失敗しました: %w", err)
	}
	return nil
}

// CountByStatus はステータスごとのリンク数を返す。
func (r *PostgresLinkRepo) CountByStatus(ctx context.Context) (map[model.LinkStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM links GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("リンク数の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.LinkStatus]int)
	for rows.Next() {
		var status model.LinkStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("リンク数のスキャンに失敗しました: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リンク数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// collectLinks はrowsから全リンクを取り出す。
func collectLinks(rows *sql.Rows) ([]*model.Link, error) {
	var links []*model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("リンクのスキャンに失敗しました: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リンク一覧の走査に失敗しました: %w", err)
	}
	return links, nil
}

// prefixColumns はカラム一覧の各カラムにテーブルエイリアスを付与する。
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
