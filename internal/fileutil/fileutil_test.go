package fileutil_test

import (
	"path/filepath"
	"testing"

	"docbridge/internal/fileutil"
	"docbridge/internal/testsupport"
)

func TestHashFileKnownVectors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"hello", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			testsupport.WriteFileString(t, path, tc.content)

			got, err := fileutil.HashFile(path)
			if err != nil {
				t.Fatalf("HashFile failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("HashFile = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := fileutil.HashFile(filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
