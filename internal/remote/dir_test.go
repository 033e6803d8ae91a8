package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirStoreListAndDownload(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"dockan/temperature/2020-01-01.csv": "a",
		"dockan/temperature/2020-01-02.csv": "b",
		"dockan/temperature/historical.zip": "c",
		"dockan/rainfall/2020-01-01.csv":    "d",
	}
	for key, content := range files {
		p := filepath.Join(root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store := NewDirStore(root, 2)
	ctx := context.Background()

	var all []string
	marker := ""
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}
		keys, next, err := store.List(ctx, "dockan/temperature/", marker)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		all = append(all, keys...)
		if next == "" {
			break
		}
		marker = next
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 keys, got %v", all)
	}

	var buf bytes.Buffer
	if err := store.Download(ctx, "dockan/temperature/historical.zip", &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "c" {
		t.Fatalf("unexpected content %q", buf.String())
	}

	if err := store.Download(ctx, "../outside.csv", &buf); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for escaping key, got %v", err)
	}
	if err := store.Download(ctx, "dockan/none.csv", &buf); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
