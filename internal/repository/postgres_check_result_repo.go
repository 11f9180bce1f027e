package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/streamhunter/internal/model"
)

// PostgresCheckResultRepo はPostgreSQLを使用した検証結果リポジトリ。
// 検証結果は不変の履歴であり、INSERTのみ行う。
type PostgresCheckResultRepo struct {
	db *sql.DB
}

// NewPostgresCheckResultRepo はPostgresCheckResultRepoを生成する。
func NewPostgresCheckResultRepo(db *sql.DB) *PostgresCheckResultRepo {
	return &PostgresCheckResultRepo{db: db}
}

// Append は検証結果を追記する。
func (r *PostgresCheckResultRepo) Append(ctx context.Context, result *model.CheckResult) error {
	var httpStatus sql.NullInt64
	if result.HTTPStatus != nil {
		httpStatus = sql.NullInt64{Int64: int64(*result.HTTPStatus), Valid: true}
	}

	var width, height, sampleRate, audioChannels sql.NullInt64
	var frameRate sql.NullFloat64
	var bitRate sql.NullInt64
	var videoCodec, audioCodec sql.NullString
	if m := result.Metrics; m != nil {
		width = sql.NullInt64{Int64: int64(m.Width), Valid: true}
		height = sql.NullInt64{Int64: int64(m.Height), Valid: true}
		frameRate = sql.NullFloat64{Float64: m.FrameRate, Valid: true}
		bitRate = sql.NullInt64{Int64: m.BitRate, Valid: true}
		sampleRate = sql.NullInt64{Int64: int64(m.SampleRate), Valid: true}
		audioChannels = sql.NullInt64{Int64: int64(m.AudioChannels), Valid: true}
		videoCodec = nullString(m.VideoCodec)
		audioCodec = nullString(m.AudioCodec)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO check_results (id, link_id, check_type, outcome, http_status,
		                            response_time_ms, width, height, frame_rate,
		                            bit_rate, sample_rate, audio_channels,
		                            video_codec, audio_codec, error_message, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		result.ID, result.LinkID, result.CheckType, result.Outcome, httpStatus,
		result.ResponseTimeMs, width, height, frameRate,
		bitRate, sampleRate, audioChannels,
		videoCodec, audioCodec, nullString(result.ErrorMessage), result.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("検証結果の追記に失敗しました: %w", err)
	}
	return nil
}

// ListRecentByLink はリンクの直近N件の検証結果を新しい順に返す。
func (r *PostgresCheckResultRepo) ListRecentByLink(ctx context.Context, linkID string, limit int) ([]*model.CheckResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, link_id, check_type, outcome, http_status, response_time_ms,
		        width, height, frame_rate, bit_rate, sample_rate, audio_channels,
		        video_codec, audio_codec, error_message, checked_at
		   FROM check_results
		  WHERE link_id = $1
		  ORDER BY checked_at DESC
		  LIMIT $2`,
		linkID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("検証結果履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.CheckResult
	for rows.Next() {
		cr := &model.CheckResult{}
		var httpStatus sql.NullInt64
		var width, height, sampleRate, audioChannels, bitRate sql.NullInt64
		var frameRate sql.NullFloat64
		var videoCodec, audioCodec, errorMessage sql.NullString

		err := rows.Scan(
			&cr.ID, &cr.LinkID, &cr.CheckType, &cr.Outcome, &httpStatus,
			&cr.ResponseTimeMs, &width, &height, &frameRate, &bitRate,
			&sampleRate, &audioChannels, &videoCodec, &audioCodec,
			&errorMessage, &cr.CheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("検証結果のスキャンに失敗しました: %w", err)
		}

		if httpStatus.Valid {
			v := int(httpStatus.Int64)
			cr.HTTPStatus = &v
		}
		cr.ErrorMessage = nullStringValue(errorMessage)

		// メトリクスはコンテンツ検証成功時のみ存在する
		if width.Valid || sampleRate.Valid {
			cr.Metrics = &model.StreamMetrics{
				Width:         int(width.Int64),
				Height:        int(height.Int64),
				FrameRate:     frameRate.Float64,
				BitRate:       bitRate.Int64,
				SampleRate:    int(sampleRate.Int64),
				AudioChannels: int(audioChannels.Int64),
				VideoCodec:    nullStringValue(videoCodec),
				AudioCodec:    nullStringValue(audioCodec),
			}
		}

		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検証結果履歴の走査に失敗しました: %w", err)
	}

	return results, nil
}
