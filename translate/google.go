package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// Google calls the public translate.googleapis.com "gtx" endpoint.
// It is unauthenticated and may be rate limited or blocked.
type Google struct {
	http    *http.Client
	baseURL string
}

// NewGoogle creates a Google backend. An empty baseURL uses the public endpoint.
func NewGoogle(httpClient *http.Client, baseURL string) *Google {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = defaultGoogleURL
	}
	return &Google{http: httpClient, baseURL: baseURL}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error: %d - %s", resp.StatusCode, truncate(string(body), 128))
	}

	return parseGoogle(body)
}

// parseGoogle joins the translated segments of a gtx response:
// [[["你好","Hello",null,null,10],...],null,"en",...]
func parseGoogle(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid json response")
	}
	segments := gjson.GetBytes(body, "0")
	if !segments.IsArray() {
		return "", fmt.Errorf("unexpected response shape")
	}

	var b strings.Builder
	segments.ForEach(func(_, seg gjson.Result) bool {
		if seg.IsArray() {
			b.WriteString(seg.Get("0").String())
		}
		return true
	})
	return strings.TrimSpace(b.String()), nil
}

// truncate shortens a string for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
