package htmltext

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello", "hello"},
		{"strips tags", "<b>bold</b> move", "bold move"},
		{"br to newline", "line one<br/>line two", "line one\nline two"},
		{"br variants", "a<br>b<br />c", "a\nb\nc"},
		{"trims whitespace", "  <p>padded</p>  ", "padded"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		if got := Render(tt.in); got != tt.want {
			t.Errorf("%s: Render(%q) = %q; want %q", tt.name, tt.in, got, tt.want)
		}
	}
}
