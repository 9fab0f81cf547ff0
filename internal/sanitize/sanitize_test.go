package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Market Day", "Market Day"},
		{"apostrophe survives", "New Year's Day", "New Year's Day"},
		{"ampersand survives", "Bread & Salt", "Bread & Salt"},
		{"tags stripped", "<b>Feast</b> of <i>Lights</i>", "Feast of Lights"},
		{"script removed", "Fair<script>alert(1)</script>", "Fair"},
		{"whitespace collapsed", "  Harvest \n\t Festival  ", "Harvest Festival"},
		{"control chars dropped", "Bells\x00\x07", "Bells"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Midsummer Fair", 9); got != "Midsummer" {
		t.Errorf("Truncate = %q, want %q", got, "Midsummer")
	}
	if got := Truncate("short", 50); got != "short" {
		t.Errorf("Truncate = %q, want %q", got, "short")
	}
	if got := Truncate("anything", 0); got != "" {
		t.Errorf("Truncate with max 0 = %q, want empty", got)
	}
}
