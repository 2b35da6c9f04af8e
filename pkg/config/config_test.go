package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	s.valid = true
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "alignos")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	s := &sample{Port: 8080}
	if err := Load(path, s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "alignos" || s.Port != 8080 || !s.valid {
		t.Errorf("sample = %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &sample{}); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeFile(t, "port: [1\n"), &sample{}); err == nil {
		t.Error("bad yaml should fail")
	}
	err := Load(writeFile(t, "port: 0\n"), &sample{})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("validation error = %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	s := &sample{Port: 1}
	loaded, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), s)
	if err != nil || loaded || !s.valid {
		t.Errorf("missing file: loaded=%v err=%v valid=%v", loaded, err, s.valid)
	}

	if _, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &sample{}); err == nil {
		t.Error("defaults are still validated")
	}

	s = &sample{}
	loaded, err = LoadOptional(writeFile(t, "port: 9000\n"), s)
	if err != nil || !loaded || s.Port != 9000 {
		t.Errorf("present file: loaded=%v err=%v sample=%+v", loaded, err, s)
	}
}
