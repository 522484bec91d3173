package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxPageBytes = 5 * 1024 * 1024

// WebPageService fetches a web page and reduces it to readable text.
type WebPageService struct {
	httpClient *http.Client
}

func NewWebPageService() *WebPageService {
	return &WebPageService{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// FetchText returns the page title and its visible text.
func (s *WebPageService) FetchText(ctx context.Context, pageURL string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LinguaBot/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return "", "", fmt.Errorf("unsupported content type %q", ct)
	}

	title, text = extractPageText(io.LimitReader(resp.Body, maxPageBytes))
	if text == "" {
		return "", "", fmt.Errorf("no readable text found on page")
	}
	return title, text, nil
}

// skippedElements never contribute visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Svg:      true,
	atom.Form:     true,
}

// blockElements end a line of text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Pre: true,
}

func extractPageText(r io.Reader) (title, text string) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skipDepth := 0
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), NormalizeText(b.String())

		case html.StartTagToken:
			tok := z.Token()
			switch {
			case skippedElements[tok.DataAtom]:
				skipDepth++
			case tok.DataAtom == atom.Title:
				inTitle = true
			case blockElements[tok.DataAtom]:
				b.WriteString("\n")
			}

		case html.EndTagToken:
			tok := z.Token()
			switch {
			case skippedElements[tok.DataAtom] && skipDepth > 0:
				skipDepth--
			case tok.DataAtom == atom.Title:
				inTitle = false
			case blockElements[tok.DataAtom]:
				b.WriteString("\n")
			}

		case html.SelfClosingTagToken:
			if z.Token().DataAtom == atom.Br {
				b.WriteString("\n")
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			chunk := string(z.Text())
			if inTitle {
				title += chunk
				continue
			}
			if strings.TrimSpace(chunk) != "" {
				b.WriteString(strings.Join(strings.Fields(chunk), " "))
				b.WriteString(" ")
			}
		}
	}
}
