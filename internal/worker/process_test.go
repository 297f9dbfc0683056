package worker

import (
	"strings"
	"testing"

	"github.com/northbound/drive-chat/internal/model"
)

func TestJoinBlocks(t *testing.T) {
	blocks := []model.Block{
		{Text: "first"},
		{Text: "second"},
	}
	got := joinBlocks(blocks)
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Fatalf("joinBlocks missing block text: %q", got)
	}
	if !strings.Contains(got, "first\n\nsecond") {
		t.Fatalf("joinBlocks should separate blocks with a blank line, got %q", got)
	}
}

func TestJoinBlocks_Empty(t *testing.T) {
	if got := joinBlocks(nil); got != "" {
		t.Fatalf("expected empty string for no blocks, got %q", got)
	}
}

func TestExportExt_KnownContentTypes(t *testing.T) {
	cases := map[string]string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
		"text/plain": ".txt",
		"text/html":  ".html",
	}
	for contentType, want := range cases {
		if got := exportExt[contentType]; got != want {
			t.Errorf("exportExt[%q] = %q, want %q", contentType, got, want)
		}
	}
}

func TestNativeMimePrefix(t *testing.T) {
	if !strings.HasPrefix("application/vnd.google-apps.document", nativeMimePrefix) {
		t.Fatalf("expected google-apps document to match native prefix")
	}
	if strings.HasPrefix("application/pdf", nativeMimePrefix) {
		t.Fatalf("application/pdf should not match native prefix")
	}
}
