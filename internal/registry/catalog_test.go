package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oulianov/audioghost-ai/internal/failure"
)

func TestParseSize(t *testing.T) {
	cases := map[string]string{"": "base", "SMALL": "small", " large ": "large", "base": "base"}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil || got != want {
			t.Fatalf("ParseSize(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseSize("huge"); !failure.IsInput(err) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestCatalog_ModelName(t *testing.T) {
	c := New("", "")
	name, err := c.ModelName("small")
	if err != nil || name != "facebook/sam-audio-small" {
		t.Fatalf("name=%q err=%v", name, err)
	}
	c = New("acme/sep-", "")
	if name, _ := c.ModelName(""); name != "acme/sep-base" {
		t.Fatalf("custom prefix name=%q", name)
	}
	if len(c.Models()) != len(Sizes) {
		t.Fatalf("models=%v", c.Models())
	}
}

func TestCheckpoints_FiltersWeights(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"model.safetensors", "b.BIN", "readme.txt", "config.json"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := Checkpoints(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 checkpoints, got %v", files)
	}
	c := New("", dir)
	if !c.HasLocalCheckpoints() {
		t.Fatalf("expected local checkpoints")
	}
	for _, m := range c.Models() {
		if !m.Local {
			t.Fatalf("model %s not marked local", m.Name)
		}
	}
}

func TestCheckpoints_MissingDir(t *testing.T) {
	if _, err := Checkpoints(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	if New("", filepath.Join(t.TempDir(), "nope")).HasLocalCheckpoints() {
		t.Fatalf("missing dir reported checkpoints")
	}
	if New("", "").HasLocalCheckpoints() {
		t.Fatalf("empty dir setting reported checkpoints")
	}
}
