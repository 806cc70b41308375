package bluesky

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kiteletz/BlueskyBot63ar/internal/richtext"
)

const (
	postCollection = "app.bsky.feed.post"
	embedImages    = "app.bsky.embed.images"
)

// Session is the result of com.atproto.server.createSession.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// ExpiresAt reads the exp claim of the access token. The token is not
// verified; the PDS does that on every request.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s == nil || s.AccessJwt == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	// Tokens signed with algorithms unknown to jwt (ES256K) still have their
	// claims decoded; only the method lookup fails.
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessJwt, &claims); err != nil && claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// StrongRef points at a specific version of a record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRef threads a post under Parent within the conversation started by Root.
type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

// BlobRef is the CID link of an uploaded blob.
type BlobRef struct {
	Link string `json:"$link"`
}

// Blob is an uploaded media reference as returned by uploadBlob.
type Blob struct {
	Type     string  `json:"$type"`
	Ref      BlobRef `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     int64   `json:"size"`
}

// EmbedImage is one image inside an images embed.
type EmbedImage struct {
	Alt   string `json:"alt"`
	Image Blob   `json:"image"`
}

// ImagesEmbed is the app.bsky.embed.images union member.
type ImagesEmbed struct {
	Type   string       `json:"$type"`
	Images []EmbedImage `json:"images"`
}

// PostRecord is the app.bsky.feed.post record written by createRecord.
type PostRecord struct {
	Type      string           `json:"$type"`
	Text      string           `json:"text"`
	Facets    []richtext.Facet `json:"facets,omitempty"`
	Reply     *ReplyRef        `json:"reply,omitempty"`
	Embed     *ImagesEmbed     `json:"embed,omitempty"`
	CreatedAt string           `json:"createdAt"`
}

// AnnotatedPost is a top-level post with hashtag facets and optional images.
type AnnotatedPost struct {
	Text   string
	Facets []richtext.Facet
	Images []Blob
}

// Record serializes the post.
func (p AnnotatedPost) Record(createdAt time.Time) PostRecord {
	rec := PostRecord{
		Type:      postCollection,
		Text:      p.Text,
		Facets:    p.Facets,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}
	if len(p.Images) > 0 {
		embed := &ImagesEmbed{Type: embedImages}
		for _, img := range p.Images {
			embed.Images = append(embed.Images, EmbedImage{Alt: "", Image: img})
		}
		rec.Embed = embed
	}
	return rec
}

// ThreadedReply is an annotated post published under Parent in Root's thread.
type ThreadedReply struct {
	Text   string
	Facets []richtext.Facet
	Parent StrongRef
	Root   StrongRef
}

// Record serializes the reply.
func (r ThreadedReply) Record(createdAt time.Time) PostRecord {
	return PostRecord{
		Type:      postCollection,
		Text:      r.Text,
		Facets:    r.Facets,
		Reply:     &ReplyRef{Root: r.Root, Parent: r.Parent},
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}
}

// ProfileViewBasic identifies an account in views.
type ProfileViewBasic struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Profile is app.bsky.actor.defs#profileViewDetailed, trimmed.
type Profile struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName,omitempty"`
	Description    string `json:"description,omitempty"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
}

// FeedPost is the subset of a post record read back from views.
type FeedPost struct {
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Reply     *ReplyRef `json:"reply,omitempty"`
}

// PostView is app.bsky.feed.defs#postView.
type PostView struct {
	URI        string           `json:"uri"`
	CID        string           `json:"cid"`
	Author     ProfileViewBasic `json:"author"`
	Record     FeedPost         `json:"record"`
	LikeCount  int              `json:"likeCount"`
	ReplyCount int              `json:"replyCount"`
	IndexedAt  string           `json:"indexedAt"`
}

// Ref returns the strong reference to this post.
func (p PostView) Ref() StrongRef {
	return StrongRef{URI: p.URI, CID: p.CID}
}

// CreatedAt parses the record timestamp.
func (p PostView) CreatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, p.Record.CreatedAt)
}

// FeedViewPost is one feed item. Reason is set for reposts.
type FeedViewPost struct {
	Post   PostView        `json:"post"`
	Reason json.RawMessage `json:"reason,omitempty"`
}

// AuthorFeedParams selects a page of app.bsky.feed.getAuthorFeed.
type AuthorFeedParams struct {
	Actor  string
	Limit  int
	Cursor string
	Filter string
}

// AuthorFeed is one page of an author feed.
type AuthorFeed struct {
	Feed   []FeedViewPost `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// Like is a single like on a post.
type Like struct {
	Actor     ProfileViewBasic `json:"actor"`
	CreatedAt string           `json:"createdAt"`
}

// Likes is one page of app.bsky.feed.getLikes.
type Likes struct {
	URI    string `json:"uri"`
	Likes  []Like `json:"likes"`
	Cursor string `json:"cursor,omitempty"`
}

// ThreadViewPost is a node of app.bsky.feed.getPostThread. Post is nil for
// blocked or deleted replies.
type ThreadViewPost struct {
	Type    string           `json:"$type"`
	Post    *PostView        `json:"post,omitempty"`
	Replies []ThreadViewPost `json:"replies,omitempty"`
}
