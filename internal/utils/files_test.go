package utils_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/correlate-cli/internal/utils"
)

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.md")
	if err := utils.SafeWriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "second" {
		t.Fatalf("got %q, %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"points": 3})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if string(b) != "{\n  \"points\": 3\n}\n" {
		t.Fatalf("unexpected output %q", b)
	}
	if _, err := utils.PrettyJSON(math.NaN()); err == nil {
		t.Fatalf("NaN should not marshal")
	}
}
