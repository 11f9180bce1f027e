package collector

import "testing"

func TestMatchesKeyword(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		keyword string
		want    bool
	}{
		{"完全一致", "CCTV1", "CCTV1", true},
		{"画質表記を無視", "CCTV1 高清", "CCTV1", true},
		{"括弧書きを無視", "BBC One (1080p)", "BBC One", true},
		{"方括弧を無視", "NHK World [Not 24/7]", "NHK World", true},
		{"大文字小文字を無視", "cctv5", "CCTV5", true},
		{"数字の誤マッチを防止", "CCTV10", "CCTV1", false},
		{"数字の誤マッチを防止の逆", "CCTV1", "CCTV10", false},
		{"プラス付きの区別", "CCTV5+", "CCTV5", false},
		{"プラス付き同士", "CCTV5+ 高清", "CCTV5+", true},
		{"部分一致", "湖南卫视高清频道", "湖南卫视", true},
		{"不一致", "東方衛視", "湖南卫视", false},
		{"空のチャンネル名", "", "CCTV1", false},
		{"空のキーワード", "CCTV1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesKeyword(tt.channel, tt.keyword); got != tt.want {
				t.Errorf("MatchesKeyword(%q, %q) = %v, want %v", tt.channel, tt.keyword, got, tt.want)
			}
		})
	}
}

func TestNormalizeChannelName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CCTV1 高清", "cctv1"},
		{"BBC One (720p)", "bbcone"},
		{"  深圳卫视 4K ", "深圳卫视"},
	}

	for _, tt := range tests {
		if got := normalizeChannelName(tt.input); got != tt.want {
			t.Errorf("normalizeChannelName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
