package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "vis_1.jpg")
	b := filepath.Join(dir, "thermal_1.jpg")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// Missing files and empty paths are not errors
	if err := RemoveFiles(a, "", filepath.Join(dir, "missing.jpg"), b); err != nil {
		t.Fatalf("RemoveFiles: %v", err)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}

	// A non-empty directory cannot be removed and must be reported
	sub := filepath.Join(dir, "sub")
	os.Mkdir(sub, 0755)
	os.WriteFile(filepath.Join(sub, "f"), nil, 0644)
	if err := RemoveFiles(sub); err == nil {
		t.Error("Expected an error removing a non-empty directory")
	}
}

func TestReadHead(t *testing.T) {
	p := filepath.Join(t.TempDir(), "short")
	if err := os.WriteFile(p, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	head, err := ReadHead(p, 8)
	if err != nil {
		t.Fatal(err)
	}
	if string(head) != "abc" {
		t.Errorf("Expected abc, got %q", head)
	}

	head, _ = ReadHead(p, 2)
	if string(head) != "ab" {
		t.Errorf("Expected ab, got %q", head)
	}

	if _, err := ReadHead(p+".missing", 2); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWriteError(t *testing.T) {
	s := NewSafeCommand(context.Background(), "exiftool")
	s.Stderr.WriteString("Warning: bad tag")

	var buf bytes.Buffer
	writeError(&buf, "Decoding failed", os.ErrNotExist, s)
	out := buf.String()

	for _, want := range []string{"THERMOSENTINEL ERROR: Decoding failed", "DETAILS: file does not exist", "TOOL LOGS", "Warning: bad tag"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSafeCommandOutputFoldsStderr(t *testing.T) {
	sh, err := LookTool("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	s := NewSafeCommand(context.Background(), sh, "-c", "echo boom >&2; exit 3")
	_, err = s.Output()
	if err == nil {
		t.Fatal("Expected failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected stderr in error, got %v", err)
	}

	s = NewSafeCommand(context.Background(), sh, "-c", "printf ok")
	out, err := s.Output()
	if err != nil || string(out) != "ok" {
		t.Errorf("Expected ok, got %q (%v)", out, err)
	}
}
