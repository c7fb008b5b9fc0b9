// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrMissingCredentials is returned when a social post is requested without
// session cookies.
var ErrMissingCredentials = errors.New("social session cookies not configured")

// FetchSocialPost retrieves the text of a social post. The platform only
// serves post bodies to signed-in sessions, so cookies are required.
func FetchSocialPost(ctx context.Context, client *http.Client, postURL string, httpCfg types.HTTPConfig, social types.SocialConfig) (types.RawContent, error) {
	start := time.Now()

	if strings.TrimSpace(social.Cookies) == "" {
		return types.RawContent{}, acquisitionError(ErrMissingCredentials)
	}

	resp, err := httputil.Get(ctx, client, postURL, httpCfg.UserAgent, map[string]string{
		"Cookie":          social.Cookies,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	})
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("fetching post: %w", err))
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("parsing post page: %w", err))
	}

	title, body := postText(doc)
	if body == "" && title == "" {
		return types.RawContent{}, acquisitionError(fmt.Errorf("post %s has no readable content", postURL))
	}

	text := body
	if title != "" && !strings.Contains(body, title) {
		text = title + "\n\n" + body
	}

	finalURL := resp.Request.URL
	return types.RawContent{
		Text: strings.TrimSpace(text),
		SourceMetadata: map[string]string{
			"post_id":   path.Base(finalURL.Path),
			"post_url":  finalURL.String(),
			"author":    strings.TrimSpace(doc.Find(".author-wrapper .username").First().Text()),
			"page_type": "social_post",
		},
		Elapsed: time.Since(start),
		Size:    int64(len(text)),
	}, nil
}

// postText pulls the title and description of a post page, preferring the
// rendered detail nodes over Open Graph tags and the document title.
func postText(doc *goquery.Document) (title, body string) {
	title = firstNonEmpty(
		doc.Find("#detail-title").First().Text(),
		metaContent(doc, `meta[property="og:title"]`),
		doc.Find("title").First().Text(),
	)
	body = firstNonEmpty(
		doc.Find("#detail-desc").First().Text(),
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
	)
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

func metaContent(doc *goquery.Document, selector string) string {
	return doc.Find(selector).First().AttrOr("content", "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
