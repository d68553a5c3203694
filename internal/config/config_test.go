package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile on missing file: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want openai default", cfg.LLM.Provider)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
provider = "ollama"
model = "llama3"
temperature = 0.7

[server]
port = 8800
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("LLM = %+v, want ollama/llama3", cfg.LLM)
	}
	if cfg.Server.Port != 8800 {
		t.Errorf("Server.Port = %d, want 8800", cfg.Server.Port)
	}
	// Unset sections keep their defaults.
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("Embedding.BatchSize = %d, want 100", cfg.Embedding.BatchSize)
	}
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm\nprovider="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile should fail on invalid TOML")
	}
}

func TestLoadFile_EnvAPIKey(t *testing.T) {
	t.Setenv("TEST_BUILDLI_KEY", "sk-secret")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
api_key = "env:TEST_BUILDLI_KEY"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Errorf("APIKey = %q, want resolved env value", cfg.LLM.APIKey)
	}
}

func TestLoadFile_VectorPathEnvOverride(t *testing.T) {
	t.Setenv(EnvVectorPath, "/tmp/override.db")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Vector.Path != "/tmp/override.db" {
		t.Errorf("Vector.Path = %q, want /tmp/override.db", cfg.Vector.Path)
	}
}

func TestSet(t *testing.T) {
	cfg := Default()

	cases := []struct {
		key, value string
		check      func() bool
	}{
		{"llm.model", "gpt-4o", func() bool { return cfg.LLM.Model == "gpt-4o" }},
		{"llm.temperature", "0.9", func() bool { return cfg.LLM.Temperature == 0.9 }},
		{"server.port", "7000", func() bool { return cfg.Server.Port == 7000 }},
		{"vector.backend", "memory", func() bool { return cfg.Vector.Backend == "memory" }},
		{"paths.index_root", "a, b", func() bool {
			return len(cfg.Paths.IndexRoot) == 2 && cfg.Paths.IndexRoot[1] == "b"
		}},
	}

	for _, c := range cases {
		if err := Set(cfg, c.key, c.value); err != nil {
			t.Errorf("Set(%q, %q): %v", c.key, c.value, err)
			continue
		}
		if !c.check() {
			t.Errorf("Set(%q, %q) did not apply", c.key, c.value)
		}
	}
}

func TestSet_UnknownKey(t *testing.T) {
	if err := Set(Default(), "llm.bogus", "x"); err == nil {
		t.Error("Set with unknown key should fail")
	}
}

func TestSet_BadNumber(t *testing.T) {
	if err := Set(Default(), "server.port", "not-a-port"); err == nil {
		t.Error("Set with non-numeric port should fail")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.LLM.Model = "gpt-4o"
	cfg.Server.Port = 9999

	if err := SaveFile(cfg, path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.LLM.Model != "gpt-4o" || got.Server.Port != 9999 {
		t.Errorf("round trip = %+v / %+v", got.LLM, got.Server)
	}
}

func TestDump(t *testing.T) {
	out, err := Dump(Default())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(out, "[llm]") || !strings.Contains(out, "provider") {
		t.Errorf("Dump output missing expected sections:\n%s", out)
	}
}
