package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

// NewsNamespace is the Google News sitemap extension namespace.
const NewsNamespace = "http://www.google.com/schemas/sitemap-news/0.9"

// ErrMalformedFeed is returned when the payload is not a readable feed.
// Parse may return it together with the references decoded before the
// problem was hit.
var ErrMalformedFeed = errors.New("malformed feed")

// newsSpaces lists the preferred spellings of the news extension, in lookup
// order. encoding/xml reports the namespace URI for declared prefixes and
// the bare prefix for undeclared ones. Any other <news> child of <url> is
// still accepted after these, whatever URI its prefix is bound to.
var newsSpaces = []string{"n", "news", NewsNamespace}

// node is a generic element tree; the news block layout differs between
// publishers only by prefix, so matching happens on local names.
type node struct {
	XMLName  xml.Name
	Text     string `xml:",chardata"`
	Children []node `xml:",any"`
}

func (n *node) child(local string) (*node, bool) {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i], true
		}
	}
	return nil, false
}

func (n *node) path(locals ...string) (string, bool) {
	cur := n
	for _, local := range locals {
		next, ok := cur.child(local)
		if !ok {
			return "", false
		}
		cur = next
	}
	return strings.TrimSpace(cur.Text), true
}

// Parser converts raw feed payloads into article references.
type Parser struct {
	log   *slog.Logger
	feeds *gofeed.Parser
}

// NewParser returns a Parser. log may be nil.
func NewParser(log *slog.Logger) *Parser {
	if log == nil {
		log = logger.Discard()
	}
	return &Parser{log: log, feeds: gofeed.NewParser()}
}

// Parse decodes a news sitemap (or an RSS/Atom feed) into references in
// feed order. Missing fields become empty strings.
func (p *Parser) Parse(raw []byte) ([]models.ArticleReference, error) {
	root, err := rootElement(raw)
	if err != nil {
		return nil, err
	}

	switch root {
	case "urlset":
		return p.parseURLSet(raw)
	case "rss", "feed", "RDF":
		return p.parseSyndication(raw)
	default:
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedFeed, root)
	}
}

func (p *Parser) parseURLSet(raw []byte) ([]models.ArticleReference, error) {
	dec := newDecoder(raw)
	refs := make([]models.ArticleReference, 0, 64)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.log.Warn("feed truncated by syntax error", slog.Int("parsed", len(refs)), slog.Any("err", err))
			return refs, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "url" {
			continue
		}

		var entry node
		if err := dec.DecodeElement(&entry, &start); err != nil {
			p.log.Warn("feed truncated by syntax error", slog.Int("parsed", len(refs)), slog.Any("err", err))
			return refs, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}

		ref := referenceFromEntry(&entry)
		p.log.Debug("parsed feed entry", slog.String("location", ref.Location))
		refs = append(refs, ref)
	}

	p.log.Debug("completed feed parse", slog.Int("entries", len(refs)))
	return refs, nil
}

func referenceFromEntry(entry *node) models.ArticleReference {
	ref := models.ArticleReference{}
	if loc, ok := entry.path("loc"); ok {
		ref.Location = loc
	}

	blocks := newsBlocks(entry)
	ref.Publication = firstField(blocks, "publication", "name")
	ref.Title = firstField(blocks, "title")
	ref.PublicationDate = firstField(blocks, "publication_date")
	ref.Keywords = firstField(blocks, "keywords")
	return ref
}

func newsBlocks(entry *node) []*node {
	var known, other []*node
	for _, space := range newsSpaces {
		for i := range entry.Children {
			c := &entry.Children[i]
			if c.XMLName.Local == "news" && c.XMLName.Space == space {
				known = append(known, c)
			}
		}
	}
	for i := range entry.Children {
		c := &entry.Children[i]
		if c.XMLName.Local == "news" && !isKnownSpace(c.XMLName.Space) {
			other = append(other, c)
		}
	}
	return append(known, other...)
}

func isKnownSpace(space string) bool {
	for _, s := range newsSpaces {
		if s == space {
			return true
		}
	}
	return false
}

func firstField(blocks []*node, locals ...string) string {
	for _, b := range blocks {
		if v, ok := b.path(locals...); ok {
			return v
		}
	}
	return ""
}

func (p *Parser) parseSyndication(raw []byte) ([]models.ArticleReference, error) {
	feed, err := p.feeds.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	refs := make([]models.ArticleReference, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		ref := models.ArticleReference{
			Location:    strings.TrimSpace(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Publication: strings.TrimSpace(feed.Title),
			Keywords:    strings.Join(item.Categories, ", "),
		}
		if item.PublishedParsed != nil {
			ref.PublicationDate = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else {
			ref.PublicationDate = strings.TrimSpace(item.Published)
		}
		refs = append(refs, ref)
	}

	p.log.Debug("completed syndication feed parse", slog.String("type", feed.FeedType), slog.Int("entries", len(refs)))
	return refs, nil
}

func rootElement(raw []byte) (string, error) {
	dec := newDecoder(raw)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: no root element", ErrMalformedFeed)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func newDecoder(raw []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}
