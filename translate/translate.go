// Package translate talks to external translation services.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.aimuz.me/cliptrans/cache"
	"go.aimuz.me/cliptrans/internal/types"
)

// DefaultChineseVariant is the language code requested for Chinese output.
const DefaultChineseVariant = "zh-TW"

var (
	// ErrTimeout means the service did not answer within the request timeout.
	ErrTimeout = errors.New("translation timed out")
	// ErrService covers every transport, status and parse failure.
	ErrService = errors.New("translation failed or blocked")
)

// Error is the single error type returned by Client.Translate.
// errors.Is matches both its Kind and the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Service is a translation backend. Language arguments are service codes
// such as "en" or "zh-TW".
type Service interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Options configures a Client.
type Options struct {
	ChineseVariant string
	CacheTTL       time.Duration
}

// Client wraps a Service with a hard timeout, an identity fast path and an
// optional cache. Zero value is not useful; create via NewClient.
type Client struct {
	svc     Service
	cache   *cache.Cache
	variant string
	ttl     time.Duration
}

// NewClient creates a Client. c may be nil to disable caching.
func NewClient(svc Service, c *cache.Cache, opts Options) *Client {
	if opts.ChineseVariant == "" {
		opts.ChineseVariant = DefaultChineseVariant
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	return &Client{svc: svc, cache: c, variant: opts.ChineseVariant, ttl: opts.CacheTTL}
}

// Code maps a pipeline language to the code sent to the service.
func (c *Client) Code(l types.Lang) string {
	if l == types.Chinese {
		return c.variant
	}
	return l.String()
}

type result struct {
	text string
	err  error
}

// Translate translates req.Text. It returns as soon as ctx is done or
// req.Timeout elapses, even if the backend is still running.
func (c *Client) Translate(ctx context.Context, req types.TranslateRequest) (string, error) {
	if req.Source == req.Target {
		return req.Text, nil
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	src, dst := c.Code(req.Source), c.Code(req.Target)
	key := cache.GenerateKey(c.svc.Name(), src, dst, req.Text)
	if text, ok := c.getCached(key); ok {
		return text, nil
	}

	done := make(chan result, 1)
	go func() {
		text, err := c.svc.Translate(ctx, req.Text, src, dst)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", contextError(ctx.Err())
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return "", contextError(ctx.Err())
			}
			return "", &Error{Kind: ErrService, Err: r.err}
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return "", &Error{Kind: ErrService, Err: errors.New("empty translation")}
		}
		c.setCache(key, text)
		return text, nil
	}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	return &Error{Kind: ErrService, Err: err}
}

func (c *Client) getCached(key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	entry, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	return entry.Text, true
}

func (c *Client) setCache(key, text string) {
	if c.cache == nil {
		return
	}
	entry := &cache.Entry{Text: text, Backend: c.svc.Name(), CreatedAt: time.Now()}
	if err := c.cache.Set(key, entry, c.ttl); err != nil {
		slog.Warn("cache translation", "error", err)
	}
}
