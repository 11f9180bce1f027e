package security

import "testing"

func TestTextSanitizer_RemovesTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "CCTV1 綜合", "CCTV1 綜合"},
		{"タグ除去", "<b>CCTV1</b> 綜合", "CCTV1 綜合"},
		{"scriptタグ除去", `NHK<script>alert("x")</script>総合`, "NHK総合"},
		{"リンクはテキストのみ残す", `<a href="http://evil.example">BBC One</a>`, "BBC One"},
		{"前後空白の除去", "  深圳卫视  ", "深圳卫视"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := "<div>湖南卫视 <em>高清</em></div>"
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("サニタイズは冪等であるべきです: once=%q twice=%q", once, twice)
	}
}
