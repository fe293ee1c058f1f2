// Package extract isolates share URLs from free-form text and decodes the
// server-rendered page data embedded in a share page.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// sourceURLPattern captures a share URL terminated by the "点" marker
	// that share messages append after the link.
	sourceURLPattern = regexp.MustCompile(`(https://[\s\S]+?)点`)
	// blobPattern captures the page-props JSON object up to the next tag.
	blobPattern = regexp.MustCompile(`(\{"props"[\s\S]+?})<`)
)

// ErrMissingItems is returned when the page data has no item list.
var ErrMissingItems = errors.New("page data has no metaOGInfo.data list")

// MediaType classifies an entry of an item's media list.
type MediaType string

// Known media types.
const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Media is one entry of an item's media list.
type Media struct {
	Type MediaType
	URL  string
}

// Item is one post decoded from a share page.
type Item struct {
	Title       string
	VideoURL    string
	CoverURL    string
	TextContent string
	Media       []Media
}

// FirstVideo returns the first video entry of the media list.
func (i Item) FirstVideo() (Media, bool) {
	for _, m := range i.Media {
		if m.Type == MediaTypeVideo {
			return m, true
		}
	}
	return Media{}, false
}

// SourceURLs returns every share URL in text, in order of appearance, with
// surrounding whitespace trimmed. Duplicates are kept.
func SourceURLs(text string) []string {
	matches := sourceURLPattern.FindAllStringSubmatch(text, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, strings.TrimSpace(m[1]))
	}
	return urls
}

// EmbeddedBlob locates the page data JSON inside an HTML body.
func EmbeddedBlob(body []byte) (string, bool) {
	m := blobPattern.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

type pageData struct {
	Props struct {
		PageProps struct {
			MetaOGInfo struct {
				Data *[]struct {
					Content itemContent `json:"content"`
				} `json:"data"`
			} `json:"metaOGInfo"`
		} `json:"pageProps"`
	} `json:"props"`
}

type itemContent struct {
	Title         string `json:"title"`
	VideoShareURL string `json:"videoShareUrl"`
	Cover         struct {
		URL string `json:"url"`
	} `json:"cover"`
	Content string `json:"content"`
	Media   struct {
		List []struct {
			MediaType string `json:"mediaType"`
			URL       string `json:"url"`
		} `json:"list"`
	} `json:"media"`
}

// ParseItems decodes the items under props.pageProps.metaOGInfo.data.
func ParseItems(blob string) ([]Item, error) {
	var page pageData
	if err := json.Unmarshal([]byte(blob), &page); err != nil {
		return nil, fmt.Errorf("decode page data: %w", err)
	}
	data := page.Props.PageProps.MetaOGInfo.Data
	if data == nil {
		return nil, ErrMissingItems
	}

	items := make([]Item, 0, len(*data))
	for _, entry := range *data {
		c := entry.Content
		item := Item{
			Title:       c.Title,
			VideoURL:    c.VideoShareURL,
			CoverURL:    c.Cover.URL,
			TextContent: c.Content,
			Media:       make([]Media, 0, len(c.Media.List)),
		}
		for _, m := range c.Media.List {
			item.Media = append(item.Media, Media{Type: MediaType(m.MediaType), URL: m.URL})
		}
		items = append(items, item)
	}
	return items, nil
}
