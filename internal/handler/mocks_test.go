package handler

import (
	"context"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/playlist"
)

// mockChannelReader はChannelReaderのモック実装。
type mockChannelReader struct {
	channels []*model.Channel
	err      error
}

func (m *mockChannelReader) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, ch := range m.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, nil
}

func (m *mockChannelReader) List(ctx context.Context, category string, activeOnly bool) ([]*model.Channel, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.Channel
	for _, ch := range m.channels {
		if activeOnly && !ch.IsActive {
			continue
		}
		if category != "" && ch.Category != category {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// mockLinkStore はルーターのLinks依存（3インターフェース）のモック実装。
type mockLinkStore struct {
	links []*model.Link
	err   error
}

func (m *mockLinkStore) ListByChannel(ctx context.Context, channelID string) ([]*model.Link, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.Link
	for _, link := range m.links {
		if link.ChannelID == channelID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *mockLinkStore) FindByID(ctx context.Context, id string) (*model.Link, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, link := range m.links {
		if link.ID == id {
			return link, nil
		}
	}
	return nil, nil
}

func (m *mockLinkStore) ListByStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.Link
	for _, link := range m.links {
		if link.Status == status {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *mockLinkStore) CountByStatus(ctx context.Context) (map[model.LinkStatus]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := make(map[model.LinkStatus]int)
	for _, link := range m.links {
		counts[link.Status]++
	}
	return counts, nil
}

// mockCheckHistory はCheckHistoryReaderのモック実装。
type mockCheckHistory struct {
	results   []*model.CheckResult
	err       error
	lastLimit int
}

func (m *mockCheckHistory) ListRecentByLink(ctx context.Context, linkID string, limit int) ([]*model.CheckResult, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.CheckResult
	for _, result := range m.results {
		if result.LinkID == linkID {
			out = append(out, result)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// mockPlaylistBuilder はPlaylistBuilderのモック実装。
type mockPlaylistBuilder struct {
	entries []playlist.Entry
	content string
	err     error
}

func (m *mockPlaylistBuilder) Entries(ctx context.Context) ([]playlist.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockPlaylistBuilder) Build(ctx context.Context) (string, []playlist.Entry, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return m.content, m.entries, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

func testLink(id, channelID string, status model.LinkStatus, checkedAgo time.Duration) *model.Link {
	link := &model.Link{
		ID:        id,
		ChannelID: channelID,
		URL:       "http://example.com/" + id + ".m3u8",
		Status:    status,
	}
	if checkedAgo > 0 {
		link.LastCheckedAt = timePtr(time.Now().Add(-checkedAgo))
	}
	return link
}
