// Package webindex fetches OBS repository directory listings. Two transport
// shapes exist: the classic HTML index page with anchor tags, and the
// MirrorCache JSON table used by newer opensuse.org mirrors. Consumers only
// ever see the flattened, de-duplicated, sorted filename sequence.
package webindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/service"
)

type Index struct {
	URL    string
	Client service.HTTPClient
}

func New(url string, client service.HTTPClient) *Index {
	return &Index{URL: strings.TrimSuffix(url, "/"), Client: client}
}

// FileURL joins a listing entry back onto the repository URL.
func (ix *Index) FileURL(name string) string {
	return ix.URL + "/" + name
}

// List returns the filenames published under the repository URL that start
// with prefix. The HTML index is scraped first; an empty result falls back
// to the JSON listing.
func (ix *Index) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := ix.listHTML(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		logger.Debug("empty HTML index at %s, trying JSON listing", ix.URL)
		return ix.listJSON(ctx, prefix)
	}
	return names, nil
}

func (ix *Index) listHTML(ctx context.Context, prefix string) ([]string, error) {
	body, err := service.FetchBytes(ctx, ix.Client, ix.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch index page: %w", err)
	}
	return flatten(anchorTargets(body), prefix), nil
}

type jsonListing struct {
	Data []struct {
		Name string `json:"name"`
	} `json:"data"`
}

func (ix *Index) listJSON(ctx context.Context, prefix string) ([]string, error) {
	body, err := service.FetchBytes(ctx, ix.Client, ix.URL+"?jsontable")
	if err != nil {
		return nil, fmt.Errorf("fetch JSON listing: %w", err)
	}

	var listing jsonListing
	if err := json.Unmarshal(body, &listing); err != nil {
		// A mirror without the jsontable endpoint serves HTML here; treat
		// it as an empty listing rather than a failure.
		logger.Debug("JSON listing not available at %s: %v", ix.URL, err)
		return nil, nil
	}

	names := make([]string, 0, len(listing.Data))
	for _, entry := range listing.Data {
		names = append(names, entry.Name)
	}
	return flatten(names, prefix), nil
}

// anchorTargets extracts every <a href> value from an HTML document.
func anchorTargets(body []byte) []string {
	var names []string

	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return names
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					names = append(names, attr.Val)
				}
			}
		}
	}
}

// flatten strips the "./" prefix newer OBS interfaces put on links, keeps
// entries starting with prefix, de-duplicates and sorts.
func flatten(names []string, prefix string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		name = strings.TrimPrefix(name, "./")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
