// Package channel はチャンネルカタログ（channels.yaml）の読み込みとDB同期を行う。
package channel

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/streamhunter/internal/model"
)

// CatalogEntry はカタログファイル上の1チャンネル分の定義。
type CatalogEntry struct {
	Name        string   `yaml:"name"`
	LogoURL     string   `yaml:"logo"`
	Keywords    []string `yaml:"keywords"`
	Category    string   `yaml:"category"`
	Priority    int      `yaml:"priority"`
	Description string   `yaml:"description"`
	// Active は省略時true。明示的にfalseを指定したチャンネルは
	// 収集・検証・プレイリストの対象から外れる。
	Active *bool `yaml:"active"`
}

// IsActive はエントリの有効フラグを返す。未指定はtrue。
func (e CatalogEntry) IsActive() bool {
	return e.Active == nil || *e.Active
}

// Catalog はchannels.yamlの内容。
type Catalog struct {
	Channels []CatalogEntry `yaml:"channels"`
}

// LoadCatalog は指定パスのYAMLカタログを読み込んで検証する。
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("チャンネルカタログの読み込みに失敗しました: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("チャンネルカタログの解析に失敗しました: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate はカタログの内容を検証する。
// チャンネル名は必須かつ一意。優先度は1-10に丸められる。
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)
	for i := range c.Channels {
		entry := &c.Channels[i]
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return fmt.Errorf("チャンネル[%d]: 名前が指定されていません", i)
		}
		if seen[entry.Name] {
			return fmt.Errorf("チャンネル名が重複しています: %s", entry.Name)
		}
		seen[entry.Name] = true
		entry.Priority = model.NormalizePriority(entry.Priority)

		keywords := entry.Keywords[:0]
		for _, kw := range entry.Keywords {
			kw = strings.TrimSpace(kw)
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		entry.Keywords = keywords
	}
	return nil
}
