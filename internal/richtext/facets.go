// Package richtext builds app.bsky.richtext.facet annotations for post text.
package richtext

import (
	"log/slog"
	"strings"
)

const (
	facetType      = "app.bsky.richtext.facet"
	tagFeatureType = facetType + "#tag"
)

// ByteSlice addresses a half-open range of the UTF-8 encoded text.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is a single facet feature. Only hashtags are produced here.
type Feature struct {
	Type string `json:"$type"`
	Tag  string `json:"tag,omitempty"`
}

// Facet marks Index as carrying Features.
type Facet struct {
	Type     string    `json:"$type,omitempty"`
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// Tag returns the hashtag carried by the facet, or "" when it has none.
func (f Facet) Tag() string {
	for _, feat := range f.Features {
		if feat.Type == tagFeatureType {
			return feat.Tag
		}
	}
	return ""
}

// NewTagFacet returns a hashtag facet over [start, end).
func NewTagFacet(start, end int, tag string) Facet {
	return Facet{
		Type:     facetType,
		Index:    ByteSlice{ByteStart: start, ByteEnd: end},
		Features: []Feature{{Type: tagFeatureType, Tag: tag}},
	}
}

// ComposeText appends "#tag" for every hashtag to text, space separated.
// Text without hashtags is returned unchanged.
func ComposeText(text string, hashtags []string) string {
	if len(hashtags) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for _, tag := range hashtags {
		b.WriteString(" #")
		b.WriteString(tag)
	}
	return b.String()
}

// HashtagFacets emits one facet per occurrence of "#tag" in text for every
// entry of hashtags, in hashtag order and then text order. Matching is a
// literal, case-sensitive substring search, so "#cat" also matches inside
// "#category"; existing content relies on that. Duplicate hashtags yield
// duplicate facets. Offsets are UTF-8 byte positions, which is what Go string
// indexing already yields.
func HashtagFacets(text string, hashtags []string, logger *slog.Logger) []Facet {
	if logger == nil {
		logger = slog.Default()
	}
	var facets []Facet
	for _, tag := range hashtags {
		needle := "#" + tag
		found := 0
		for offset := 0; offset <= len(text); {
			idx := strings.Index(text[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(needle)
			facets = append(facets, NewTagFacet(start, end, tag))
			logger.Debug("hashtag facet", "tag", needle, "byte_start", start, "byte_end", end)
			found++
			offset = end
		}
		if found == 0 {
			logger.Info("hashtag not found in text, no facet emitted", "tag", needle)
		}
	}
	return facets
}
