package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	in := "  first line  \r\n\r\n\r\n\tsecond\r\nthird  \n\n"
	want := "first line\n\nsecond\nthird"
	if got := NormalizeText(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractTextFromPath_TXT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.TXT")
	if err := os.WriteFile(path, []byte("  Bonjour  \n\n\n  le monde "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewFileExtractService().ExtractTextFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Bonjour\n\nle monde" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestExtractTextFromPath_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	binary := filepath.Join(dir, "binary.txt")
	other := filepath.Join(dir, "slides.pptx")
	os.WriteFile(empty, []byte(" \n \n"), 0o644)
	os.WriteFile(binary, []byte{0xff, 0xfe, 0xfd}, 0o644)
	os.WriteFile(other, []byte("x"), 0o644)

	svc := NewFileExtractService()
	for _, path := range []string{empty, binary, other, filepath.Join(dir, "missing.txt")} {
		if _, err := svc.ExtractTextFromPath(path); err == nil {
			t.Errorf("expected error for %s", filepath.Base(path))
		}
	}
}

func TestExtractPageText(t *testing.T) {
	page := `<html><head><title> Les animaux </title><style>body{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Le chat</h1>
<p>Le   chat dort.<br/>Le chien court.</p>
<script>var x = "hidden";</script>
<footer>copyright</footer>
</body></html>`

	title, text := extractPageText(strings.NewReader(page))
	if title != "Les animaux" {
		t.Errorf("expected title, got %q", title)
	}
	for _, want := range []string{"Le chat", "Le chat dort.", "Le chien court."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q: %q", want, text)
		}
	}
	for _, unwanted := range []string{"hidden", "Home", "copyright", "body{}"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("text contains %q: %q", unwanted, text)
		}
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/video", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := ExtractVideoID(tc.url); got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<transcript><text start="0" dur="1">Hello &amp;amp; welcome</text><text start="1" dur="1"> </text><text start="2" dur="1">to class</text></transcript>`)
	got, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello & welcome to class" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestTranscriptLanguages(t *testing.T) {
	if got := TranscriptLanguages("Japanese"); len(got) == 0 || got[0] != "ja" {
		t.Errorf("expected ja first, got %v", got)
	}
	if got := TranscriptLanguages(""); got[0] != "en" {
		t.Errorf("expected en default, got %v", got)
	}
	if got := TranscriptLanguages("pt"); got[0] != "pt" || got[1] != "en" {
		t.Errorf("expected passthrough with en fallback, got %v", got)
	}
}
