package domain

import "fmt"

// Document is the retrieval unit of the corpus. Immutable once ingested;
// retrieval results reference documents by id, they never copy content.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Corpus is the read-only document collection an evaluation runs against.
// It is built once at startup and shared across all concurrent queries.
type Corpus struct {
	docs []Document
	byID map[string]int
}

func NewCorpus(docs []Document) (*Corpus, error) {
	byID := make(map[string]int, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return nil, WrapError(ErrInvalidConfig, "build corpus", fmt.Errorf("document %d has empty id", i))
		}
		if _, dup := byID[doc.ID]; dup {
			return nil, WrapError(ErrInvalidConfig, "build corpus", fmt.Errorf("duplicate document id %q", doc.ID))
		}
		byID[doc.ID] = i
	}
	return &Corpus{docs: docs, byID: byID}, nil
}

func (c *Corpus) Len() int { return len(c.docs) }

// Documents returns the corpus in load order. Callers must not mutate it.
func (c *Corpus) Documents() []Document { return c.docs }

func (c *Corpus) Get(id string) (Document, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

// Resolve maps ranked hits back to their documents, preserving hit order.
// Hits referencing unknown ids are dropped rather than padded.
func (c *Corpus) Resolve(hits []RankedHit) []Document {
	out := make([]Document, 0, len(hits))
	for _, hit := range hits {
		if doc, ok := c.Get(hit.DocumentID); ok {
			out = append(out, doc)
		}
	}
	return out
}
