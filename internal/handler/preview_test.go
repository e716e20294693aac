package handler

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreviewShortBodyUnchanged(t *testing.T) {
	if got := preview("see you at 5"); got != "see you at 5" {
		t.Errorf("preview = %q, want body unchanged", got)
	}
}

func TestPreviewTruncatesLongBody(t *testing.T) {
	body := strings.Repeat("a", 300)
	got := preview(body)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("preview %q missing ellipsis", got)
	}
	if len(got) > 120+len("…") {
		t.Errorf("preview is %d bytes, want at most %d", len(got), 120+len("…"))
	}
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	// 119 ASCII bytes followed by multibyte runes puts the 120-byte
	// cut point inside a rune.
	body := strings.Repeat("a", 119) + strings.Repeat("é", 40)
	got := preview(body)
	if !utf8.ValidString(got) {
		t.Errorf("preview produced invalid UTF-8: %q", got)
	}
	want := strings.Repeat("a", 119) + "…"
	if got != want {
		t.Errorf("preview = %q, want %q", got, want)
	}
}
