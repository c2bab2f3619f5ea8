package prose

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prose.toml")
	src := "eden_bytes = 65536\npromote_age = 5\ngc_log = true\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EdenBytes != 65536 || cfg.PromoteAge != 5 || !cfg.GCLog {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SurvivorBytes != DefaultConfig().SurvivorBytes {
		t.Errorf("unset field did not keep the default")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prose.toml")
	if err := os.WriteFile(path, []byte("promote_age = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("invalid promote_age accepted")
	}
}
