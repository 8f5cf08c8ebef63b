// Package chromem implements the vector index on chromem-go, a pure Go
// embedded vector database. Each user namespace maps to its own chromem
// collection, so cross-user leakage is structurally impossible.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/index"
)

// Store wraps chromem-go behind the index.Index interface.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	// mirror keeps plain message records per namespace so Scan (the
	// keyword fallback path) works without a query vector.
	mirror map[string]map[string]core.Message
	mu     sync.RWMutex
	log    *logrus.Entry
}

// New creates an empty chromem-backed index.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		mirror:      make(map[string]map[string]core.Message),
		log:         logrus.WithField("component", "index.chromem"),
	}, nil
}

// collection returns the chromem collection for a namespace, creating it
// on first use.
func (s *Store) collection(namespace string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[namespace]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[namespace]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection("user_"+namespace, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[namespace] = col
	s.mirror[namespace] = make(map[string]core.Message)
	return col, nil
}

// Upsert stores items in the namespace. chromem keys documents by ID, so
// re-adding the same content-derived ID replaces rather than duplicates.
func (s *Store) Upsert(ctx context.Context, namespace string, items []index.Item) error {
	if namespace == "" {
		return index.ErrMissingNamespace
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}

	for _, item := range items {
		if !item.Message.Validate() {
			s.log.WithField("id", item.Message.ID).Debug("skipping invalid message")
			continue
		}

		doc := chromem.Document{
			ID:        item.Message.ID,
			Content:   item.Message.Text,
			Embedding: item.Vector,
			Metadata:  serialize(namespace, item.Message),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}

		s.mu.Lock()
		s.mirror[namespace][item.Message.ID] = item.Message
		s.mu.Unlock()
	}
	return nil
}

// Query returns up to k matches from the namespace ranked by similarity.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, k int) ([]index.Match, error) {
	if namespace == "" {
		return nil, index.ErrMissingNamespace
	}
	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}

	where := map[string]string{"user_id": namespace}

	// chromem requires nResults <= collection size; shrink until it fits.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, vector, limit, where, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]index.Match, 0, len(results))
	for _, r := range results {
		msg, err := deserialize(r)
		if err != nil {
			// Single inconsistent record never aborts the query.
			s.log.WithField("id", r.ID).WithError(err).Debug("skipping result")
			continue
		}
		matches = append(matches, index.Match{
			Message:    msg,
			Similarity: float64(r.Similarity),
		})
	}
	return matches, nil
}

// Scan returns up to limit stored messages without vector ranking.
func (s *Store) Scan(ctx context.Context, namespace string, limit int) ([]core.Message, error) {
	if namespace == "" {
		return nil, index.ErrMissingNamespace
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.mirror[namespace]
	if !ok {
		return nil, nil
	}

	out := make([]core.Message, 0, len(docs))
	for _, msg := range docs {
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes IDs from the namespace.
func (s *Store) Delete(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return index.ErrMissingNamespace
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.mirror[namespace], id)
	}
	s.mu.Unlock()
	return nil
}

// Close releases resources. chromem keeps everything in memory.
func (s *Store) Close() error {
	return nil
}

func serialize(namespace string, msg core.Message) map[string]string {
	meta := map[string]string{
		"user_id":   namespace,
		"previous":  msg.Previous,
		"sender":    string(msg.Sender),
		"channel":   string(msg.Channel),
		"timestamp": msg.Timestamp.Format(time.RFC3339),
		"source":    msg.Source,
	}
	if msg.BadExample {
		meta["bad_example"] = "true"
	}
	return meta
}

func deserialize(r chromem.Result) (core.Message, error) {
	if r.ID == "" || r.Content == "" {
		return core.Message{}, fmt.Errorf("incomplete record")
	}
	ts, _ := time.Parse(time.RFC3339, r.Metadata["timestamp"])
	return core.Message{
		ID:         r.ID,
		Text:       r.Content,
		Previous:   r.Metadata["previous"],
		Sender:     core.Sender(r.Metadata["sender"]),
		Channel:    core.ParseChannel(r.Metadata["channel"]),
		Timestamp:  ts,
		Source:     r.Metadata["source"],
		BadExample: r.Metadata["bad_example"] == "true",
	}, nil
}

// isTooFewDocsError checks whether a query failed because the collection
// holds fewer documents than requested.
func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
