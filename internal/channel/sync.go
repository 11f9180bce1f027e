package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/repository"
)

// Syncer はチャンネルカタログをデータベースに同期する。
type Syncer struct {
	channels repository.ChannelRepository
	logger   *slog.Logger
}

// NewSyncer はSyncerを生成する。
func NewSyncer(channels repository.ChannelRepository, logger *slog.Logger) *Syncer {
	return &Syncer{channels: channels, logger: logger}
}

// SyncResult はカタログ同期の結果。
type SyncResult struct {
	Created int
	Updated int
}

// Sync はカタログのチャンネルをデータベースに反映する。
// チャンネル名で既存レコードを照合し、存在すれば更新、なければ新規作成する。
// カタログに載っていないDB上のチャンネルは削除しない。
func (s *Syncer) Sync(ctx context.Context, catalog *Catalog) (*SyncResult, error) {
	result := &SyncResult{}
	now := time.Now()

	for _, entry := range catalog.Channels {
		existing, err := s.channels.FindByName(ctx, entry.Name)
		if err != nil {
			return result, fmt.Errorf("チャンネルの照合に失敗しました (%s): %w", entry.Name, err)
		}

		if existing == nil {
			ch := &model.Channel{
				ID:          uuid.NewString(),
				Name:        entry.Name,
				LogoURL:     entry.LogoURL,
				Keywords:    entry.Keywords,
				Category:    entry.Category,
				Priority:    entry.Priority,
				Description: entry.Description,
				IsActive:    entry.IsActive(),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.channels.Create(ctx, ch); err != nil {
				return result, fmt.Errorf("チャンネルの作成に失敗しました (%s): %w", entry.Name, err)
			}
			result.Created++
			s.logger.Info("チャンネルを新規作成しました", slog.String("name", entry.Name))
			continue
		}

		existing.LogoURL = entry.LogoURL
		existing.Keywords = entry.Keywords
		existing.Category = entry.Category
		existing.Priority = entry.Priority
		existing.Description = entry.Description
		existing.IsActive = entry.IsActive()
		existing.UpdatedAt = now
		if err := s.channels.Update(ctx, existing); err != nil {
			return result, fmt.Errorf("チャンネルの更新に失敗しました (%s): %w", entry.Name, err)
		}
		result.Updated++
		s.logger.Info("チャンネルを更新しました", slog.String("name", entry.Name))
	}

	s.logger.Info("チャンネルカタログを同期しました",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
	)
	return result, nil
}

// SyncFromFile はファイルパスからカタログを読み込んで同期する。
func (s *Syncer) SyncFromFile(ctx context.Context, path string) (*SyncResult, error) {
	catalog, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return s.Sync(ctx, catalog)
}
