// Package fetcher retrieves the GalNet index and article pages. The core
// pipeline depends only on the small interfaces below; the HTTP implementation
// is a thin, replaceable collaborator.
package fetcher

import (
	"context"
)

// RawArticle is the tuple the upstream collaborator provides for one article.
// RawDate is the feed's native date string (galactic calendar).
type RawArticle struct {
	UID      string
	Title    string
	BodyText string
	RawDate  string
}

// DatedLink is one dated archive page from the full article listing.
type DatedLink struct {
	Path    string
	RawDate string
}

// IndexFetcher lists the UIDs currently rendered on the feed index page, in
// feed order.
type IndexFetcher interface {
	FetchIndex(ctx context.Context) ([]string, error)
}

// ArticleFetcher retrieves the full content for one UID.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, uid string) (*RawArticle, error)
}

// ArchiveFetcher walks the complete archive, oldest first. Used only by the
// one-time initial corpus build.
type ArchiveFetcher interface {
	FetchAllLinks(ctx context.Context) ([]DatedLink, error)
	FetchDay(ctx context.Context, path string) ([]string, error)
}

// Fetcher is the full upstream contract.
type Fetcher interface {
	IndexFetcher
	ArticleFetcher
	ArchiveFetcher
}
