package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSumKnownVector(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Sum([]byte("hello")); got != want {
		t.Errorf("Sum = %s", got)
	}
	if got := SumString("hello"); got != want {
		t.Errorf("SumString = %s", got)
	}
}

func TestFileMatchesSum(t *testing.T) {
	p := filepath.Join(t.TempDir(), "standup.md")
	data := []byte("# Standup\nWe decided to migrate to GCP.\n")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	sum, n, err := File(p)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if sum != Sum(data) || n != int64(len(data)) {
		t.Errorf("File = %s/%d, want %s/%d", sum, n, Sum(data), len(data))
	}
	if _, _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
