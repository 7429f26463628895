package fetch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// ContentType returns the lower-cased media type of resp without parameters
// A missing or empty Content-Type header yields nil
func ContentType(resp *http.Response) *string {
	raw := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	mediaType := strings.ToLower(strings.TrimSpace(raw))
	if mediaType == "" {
		return nil
	}
	return &mediaType
}

// IsHTML reports whether a media type from ContentType is explorable HTML
func IsHTML(mediaType *string) bool {
	if mediaType == nil {
		return false
	}
	return *mediaType == "text/html" || *mediaType == "html"
}

// ReadBody reads at most maxBytes of resp and decodes it to UTF-8 using the declared or sniffed charset
// truncated is true when the body was longer than maxBytes and got cut. maxBytes <= 0 means no cap
func ReadBody(resp *http.Response, maxBytes int64) (body string, truncated bool, err error) {
	var src io.Reader = resp.Body
	if maxBytes > 0 {
		src = io.LimitReader(resp.Body, maxBytes+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if maxBytes > 0 && int64(len(raw)) > maxBytes {
		raw = raw[:maxBytes]
		truncated = true
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", truncated, fmt.Errorf("%w: charset: %w", utils.ErrResponseBodyRead, err)
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", truncated, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return string(data), truncated, nil
}
