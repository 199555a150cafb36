package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
)

var errNotFound = errors.New("not found")

// fetcher reads index documents from http(s), file:// or local paths.
// Remote documents are cached on disk.
type fetcher struct {
	client        *http.Client
	cacheDir      string
	ttl           time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	sink          diag.Sink
}

func newHTTPClient() *http.Client {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var lastErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
					lastErr = err
				}
				return nil, fmt.Errorf("dialing %s: %w", host, lastErr)
			},
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// get returns the content at loc.
func (f *fetcher) get(ctx context.Context, loc string) ([]byte, error) {
	u, err := url.Parse(loc)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return os.ReadFile(loc)
	}
	if u.Scheme == "file" {
		return os.ReadFile(filepath.FromSlash(u.Path))
	}

	if f.cacheDir == "" {
		return f.download(ctx, loc)
	}

	cached := f.cachePath(u)
	if f.isCacheValid(cached) {
		f.sink.Debug("using cached copy", "url", loc, "path", cached)
		return os.ReadFile(cached)
	}

	data, err := f.download(ctx, loc)
	if err != nil {
		if stale, readErr := os.ReadFile(cached); readErr == nil {
			f.sink.Warn("download failed, using stale cached copy", "url", loc, "err", err)
			return stale, nil
		}
		return nil, err
	}
	if err := writeAtomic(cached, data); err != nil {
		f.sink.Warn("could not update cache", "path", cached, "err", err)
	}
	return data, nil
}

func (f *fetcher) cachePath(u *url.URL) string {
	p := strings.TrimPrefix(u.Path, "/")
	if p == "" {
		p = "index"
	}
	return filepath.Join(f.cacheDir, u.Host, filepath.FromSlash(p))
}

func (f *fetcher) isCacheValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < f.ttl
}

func (f *fetcher) download(ctx context.Context, loc string) ([]byte, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.retryInterval
	eb.MaxElapsedTime = 0
	eb.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(eb, f.maxRetries), ctx)

	var data []byte
	op := func() error {
		var err error
		data, err = f.downloadOnce(ctx, loc)
		if errors.Is(err, errNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.sink.Debug("download failed, retrying", "url", loc, "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *fetcher) downloadOnce(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	f.sink.Debug("downloading", "url", loc)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", loc, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("downloading %s: %w", loc, errNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("downloading %s: HTTP %d", loc, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", loc, err)
	}
	return data, nil
}

// writeAtomic writes to a temp file first, then renames.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// resolve interprets ref relative to the location of base.
func resolve(base, ref string) string {
	if ref == "" {
		return ref
	}
	if r, err := url.Parse(ref); err == nil && r.Scheme != "" && len(r.Scheme) > 1 {
		return ref
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	if b, err := url.Parse(base); err == nil && (b.Scheme == "http" || b.Scheme == "https" || b.Scheme == "file") {
		r, err := url.Parse(ref)
		if err == nil {
			return b.ResolveReference(r).String()
		}
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref))
}
