package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// timedBody ends a network attempt's deadline when the body is closed.
type timedBody struct {
	io.ReadCloser
	timer  *time.Timer
	cancel func()
	once   sync.Once
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		b.timer.Stop()
		b.cancel()
	})
	return err
}

// detach lifts the fetch deadline from a response handed straight to the
// caller, whose own context then governs the body.
func detach(resp *http.Response) *http.Response {
	if tb, ok := resp.Body.(*timedBody); ok {
		tb.timer.Stop()
	}
	return resp
}

func discard(resp *http.Response) {
	if resp != nil {
		_ = resp.Body.Close()
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetworkFailure, err)
	}
	return body, nil
}

// rebuild returns resp with its already-read body.
func rebuild(resp *http.Response, body []byte, result string) *http.Response {
	out := *resp
	out.Header = resp.Header.Clone()
	out.Header.Set(HeaderCache, result)
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	return &out
}

// newEntry captures a response for storage.
func (r *Router) newEntry(cacheName, method, key string, resp *http.Response, body []byte) (*models.CacheEntry, error) {
	if method == "" {
		method = http.MethodGet
	}
	header := resp.Header.Clone()
	header.Del(HeaderCache)
	header.Del(HeaderFallback)
	encoded, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}

	size := int64(len(body))
	if r.opts.CountHeaderBytes {
		size += headerBytes(header)
	}
	return &models.CacheEntry{
		CacheName: cacheName,
		Method:    method,
		URL:       key,
		Status:    resp.StatusCode,
		Header:    string(encoded),
		Body:      body,
		Size:      size,
		CachedAt:  r.opts.Now().UTC(),
	}, nil
}

func headerBytes(h http.Header) int64 {
	var n int64
	for k, vs := range h {
		for _, v := range vs {
			n += int64(len(k) + len(v))
		}
	}
	return n
}

// fromEntry builds a response from a cached entry.
func fromEntry(e *models.CacheEntry, req *http.Request, result string) (*http.Response, error) {
	header := http.Header{}
	if e.Header != "" {
		if err := json.Unmarshal([]byte(e.Header), &header); err != nil {
			return nil, fmt.Errorf("decode cached headers for %s: %w", e.URL, err)
		}
	}
	header.Set(HeaderCache, result+"; name="+e.CacheName)
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}, nil
}

// fromFallback serves a designated asset in place of the requested URL.
func fromFallback(e *models.CacheEntry, req *http.Request, kind string) (*http.Response, error) {
	resp, err := fromEntry(e, req, "fallback")
	if err != nil {
		return nil, err
	}
	resp.Header.Set(HeaderFallback, kind)
	return resp, nil
}
