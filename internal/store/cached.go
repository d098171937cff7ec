package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"toolpath/internal/document"
)

// Cached fronts a Store with an LRU of serialized documents keyed by id.
// Callers always receive a freshly parsed document, never a shared one.
type Cached struct {
	Store
	docs *lru.Cache[string, []byte]
}

var _ Store = (*Cached)(nil)

func NewCached(inner Store, size int) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	docs, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	return &Cached{Store: inner, docs: docs}, nil
}

func (c *Cached) PutDocument(ctx context.Context, doc document.Document) (*DocumentRecord, error) {
	c.docs.Remove(doc.ID())
	rec, err := c.Store.PutDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	if body, err := document.Serialize(doc, false); err == nil {
		c.docs.Add(rec.ID, body)
	}
	return rec, nil
}

func (c *Cached) GetDocument(ctx context.Context, id string) (document.Document, error) {
	if body, ok := c.docs.Get(id); ok {
		return Decode(body)
	}
	doc, err := c.Store.GetDocument(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	if body, err := document.Serialize(doc, false); err == nil {
		c.docs.Add(id, body)
	}
	return doc, nil
}

func (c *Cached) DeleteDocument(ctx context.Context, id string) (bool, error) {
	c.docs.Remove(id)
	return c.Store.DeleteDocument(ctx, id)
}

// Len reports how many documents are currently cached.
func (c *Cached) Len() int { return c.docs.Len() }
