package progress

import (
	"errors"
	"strings"
	"testing"
)

func TestFileMsgUpdatesCounts(t *testing.T) {
	m := New()

	updated, _ := m.Update(FileMsg{Done: 3, Total: 10, Path: "internal/server/http.go"})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "3/10") {
		t.Errorf("view missing counts: %q", view)
	}
	if !strings.Contains(view, "internal/server/http.go") {
		t.Errorf("view missing path: %q", view)
	}
}

func TestDoneMsgQuits(t *testing.T) {
	m := New()

	updated, cmd := m.Update(DoneMsg{})
	m = updated.(Model)

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.View() != "" {
		t.Errorf("quitting view = %q, want empty", m.View())
	}
}

func TestDoneMsgWithError(t *testing.T) {
	m := New()

	updated, _ := m.Update(DoneMsg{Err: errors.New("store closed")})
	m = updated.(Model)

	if m.Err() == nil {
		t.Fatal("Err() = nil")
	}
	if !strings.Contains(m.View(), "store closed") {
		t.Errorf("view missing error: %q", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate("a/very/long/path/to/some/file.go", 15)
	if len(got) != 15 || !strings.HasPrefix(got, "...") {
		t.Errorf("truncate = %q", got)
	}
}
