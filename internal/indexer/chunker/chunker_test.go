package chunker

import (
	"strings"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		path, content, want string
	}{
		{"main.go", "", "go"},
		{"lib.rs", "", "rust"},
		{"app.py", "", "python"},
		{"index.TSX", "", "typescript"},
		{"script", "#!/usr/bin/env python3\nprint('hi')", "python"},
		{"run", "#!/bin/sh\necho hi", "shell"},
		{"data.bin", "", ""},
	}

	for _, c := range cases {
		if got := DetectLanguage(c.path, c.content); got != c.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestSplit_SmallFileIsOneModuleChunk(t *testing.T) {
	c := New(DefaultConfig())
	chunks := c.Split("small.go", "package main\n\nfunc main() {}\n")

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Type != TypeModule {
		t.Errorf("Type = %v, want %v", chunks[0].Type, TypeModule)
	}
	if chunks[0].LineStart != 1 || chunks[0].LineEnd != 3 {
		t.Errorf("lines = %d..%d, want 1..3", chunks[0].LineStart, chunks[0].LineEnd)
	}
	if chunks[0].Language != "go" {
		t.Errorf("Language = %q, want go", chunks[0].Language)
	}
}

// buildGoFile produces a file with n top-level functions, each body long
// enough that the file exceeds the single-chunk threshold.
func buildGoFile(n int) string {
	var b strings.Builder
	b.WriteString("package main\n\nimport \"fmt\"\n")
	for i := 0; i < n; i++ {
		b.WriteString("\nfunc handler")
		b.WriteByte(byte('A' + i))
		b.WriteString("() {\n")
		for j := 0; j < 20; j++ {
			b.WriteString("\tfmt.Println(\"line\")\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func TestSplit_GoDeclarationBoundaries(t *testing.T) {
	c := New(DefaultConfig())
	chunks := c.Split("handlers.go", buildGoFile(4))

	// One leading chunk (package + import) and one per function.
	if len(chunks) != 5 {
		t.Fatalf("len(chunks) = %d, want 5", len(chunks))
	}
	if chunks[0].Type != TypeOther {
		t.Errorf("leading chunk Type = %v, want %v", chunks[0].Type, TypeOther)
	}
	for _, ch := range chunks[1:] {
		if ch.Type != TypeFunction {
			t.Errorf("chunk at line %d Type = %v, want %v", ch.LineStart, ch.Type, TypeFunction)
		}
		if !strings.Contains(ch.Content, "func handler") {
			t.Errorf("chunk at line %d missing declaration", ch.LineStart)
		}
	}
}

func TestSplit_ContextLines(t *testing.T) {
	cfg := DefaultConfig()
	c := New(cfg)
	chunks := c.Split("handlers.go", buildGoFile(4))

	// The second function's chunk should begin ContextLines before its
	// declaration, so it overlaps the previous function's closing brace.
	second := chunks[2]
	if !strings.Contains(second.Content, "}") {
		t.Error("declaration chunk should carry surrounding context")
	}
}

func TestSplit_ClassType(t *testing.T) {
	var b strings.Builder
	b.WriteString("import os\n")
	for i := 0; i < 3; i++ {
		b.WriteString("\nclass Thing")
		b.WriteByte(byte('A' + i))
		b.WriteString(":\n")
		for j := 0; j < 25; j++ {
			b.WriteString("    x = 1\n")
		}
	}

	c := New(DefaultConfig())
	chunks := c.Split("things.py", b.String())

	var classes int
	for _, ch := range chunks {
		if ch.Type == TypeClass {
			classes++
		}
	}
	if classes != 3 {
		t.Errorf("class chunks = %d, want 3", classes)
	}
}

func TestSplit_FallbackFixedWindows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("some unstructured line\n")
	}

	c := New(Config{MaxLines: 50, Overlap: 10, ContextLines: 3})
	chunks := c.Split("notes.txt", b.String())

	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if chunks[0].LineStart != 1 || chunks[0].LineEnd != 50 {
		t.Errorf("first window = %d..%d, want 1..50", chunks[0].LineStart, chunks[0].LineEnd)
	}
	// Overlap: second window starts 10 lines before the first ends.
	if chunks[1].LineStart != 41 {
		t.Errorf("second window starts at %d, want 41", chunks[1].LineStart)
	}
	if chunks[2].LineEnd != 120 {
		t.Errorf("last window ends at %d, want 120", chunks[2].LineEnd)
	}
}

func TestSplit_ZeroConfigUsesDefaults(t *testing.T) {
	// The indexer builds its chunker from a zero Config, so a zero value
	// must chunk exactly like DefaultConfig.
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("some unstructured line\n")
	}

	c := New(Config{})
	chunks := c.Split("notes.txt", b.String())

	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if chunks[0].LineEnd != 50 {
		t.Errorf("first window ends at %d, want 50", chunks[0].LineEnd)
	}
	if chunks[1].LineStart != 41 {
		t.Errorf("second window starts at %d, want 41 (10-line overlap)", chunks[1].LineStart)
	}

	got := c.Split("handlers.go", buildGoFile(4))
	want := New(DefaultConfig()).Split("handlers.go", buildGoFile(4))
	if len(got) != len(want) {
		t.Fatalf("len(chunks) = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].LineStart != want[i].LineStart || got[i].LineEnd != want[i].LineEnd {
			t.Errorf("chunk %d = %d..%d, want %d..%d (default context lines)",
				i, got[i].LineStart, got[i].LineEnd, want[i].LineStart, want[i].LineEnd)
		}
	}
}

func TestSplit_EmptyFile(t *testing.T) {
	c := New(DefaultConfig())
	if chunks := c.Split("empty.go", ""); len(chunks) != 0 {
		t.Errorf("len(chunks) = %d for empty file, want 0", len(chunks))
	}
}
