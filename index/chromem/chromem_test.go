package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/embed/mock"
	"github.com/doppelkit/clone-go-sdk/index"
	"github.com/doppelkit/clone-go-sdk/index/chromem"
)

func newItem(t *testing.T, e *mock.Embedder, previous, text string) index.Item {
	t.Helper()
	vec, err := e.Embed(context.Background(), previous+"\n"+text)
	require.NoError(t, err)
	return index.Item{
		Vector: vec,
		Message: core.Message{
			ID:        core.ContentID(previous, text),
			Text:      text,
			Previous:  previous,
			Sender:    core.SenderClone,
			Channel:   core.ChannelText,
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Source:    "imessage",
		},
	}
}

func TestUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)
	defer s.Close()

	e := mock.New()
	items := []index.Item{
		newItem(t, e, "want to grab coffee tomorrow?", "sure, the usual place at nine"),
		newItem(t, e, "did you fix the deploy bug?", "yep, pushed the fix an hour ago"),
	}
	require.NoError(t, s.Upsert(ctx, "u1", items))

	qvec, err := e.Embed(ctx, "coffee tomorrow?")
	require.NoError(t, err)

	matches, err := s.Query(ctx, "u1", qvec, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, "sure, the usual place at nine", matches[0].Message.Text)
	assert.Equal(t, "want to grab coffee tomorrow?", matches[0].Message.Previous)
	assert.Equal(t, core.SenderClone, matches[0].Message.Sender)
	assert.Equal(t, core.ChannelText, matches[0].Message.Channel)
	assert.Equal(t, "imessage", matches[0].Message.Source)
	assert.Greater(t, matches[0].Similarity, 0.0)
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	item := newItem(t, e, "how was the trip?", "honestly the best vacation in years")

	// Same content-derived ID three times must end up as a single record.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, "u1", []index.Item{item}))
	}

	qvec, err := e.Embed(ctx, "how was the trip?")
	require.NoError(t, err)
	matches, err := s.Query(ctx, "u1", qvec, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	require.NoError(t, s.Upsert(ctx, "alice", []index.Item{
		newItem(t, e, "dinner friday?", "friday works for me"),
	}))
	require.NoError(t, s.Upsert(ctx, "bob", []index.Item{
		newItem(t, e, "dinner friday?", "sorry, out of town friday"),
	}))

	qvec, err := e.Embed(ctx, "dinner friday?")
	require.NoError(t, err)

	matches, err := s.Query(ctx, "alice", qvec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "friday works for me", matches[0].Message.Text)

	matches, err = s.Query(ctx, "bob", qvec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sorry, out of town friday", matches[0].Message.Text)
}

func TestQueryEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	qvec, err := e.Embed(ctx, "anything")
	require.NoError(t, err)

	matches, err := s.Query(ctx, "ghost", qvec, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQueryShrinksOverlargeLimit(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	require.NoError(t, s.Upsert(ctx, "u1", []index.Item{
		newItem(t, e, "lunch?", "sure, noon"),
	}))

	qvec, err := e.Embed(ctx, "lunch?")
	require.NoError(t, err)

	// Asking for more results than stored documents must not fail.
	matches, err := s.Query(ctx, "u1", qvec, 50)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestUpsertSkipsInvalid(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	vec, err := e.Embed(ctx, "whatever")
	require.NoError(t, err)

	items := []index.Item{
		{Vector: vec, Message: core.Message{ID: "", Text: "missing id"}},
		{Vector: vec, Message: core.Message{ID: "x1", Text: "   "}},
		newItem(t, e, "", "the only valid one"),
	}
	require.NoError(t, s.Upsert(ctx, "u1", items))

	msgs, err := s.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "the only valid one", msgs[0].Text)
}

func TestScanAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	e := mock.New()
	a := newItem(t, e, "q1", "first answer here")
	b := newItem(t, e, "q2", "second answer here")
	require.NoError(t, s.Upsert(ctx, "u1", []index.Item{a, b}))

	msgs, err := s.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = s.Scan(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, s.Delete(ctx, "u1", []string{a.Message.ID}))

	msgs, err = s.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, b.Message.ID, msgs[0].ID)
}

func TestMissingNamespace(t *testing.T) {
	ctx := context.Background()
	s, err := chromem.New()
	require.NoError(t, err)

	err = s.Upsert(ctx, "", nil)
	assert.ErrorIs(t, err, index.ErrMissingNamespace)

	_, err = s.Query(ctx, "", nil, 5)
	assert.ErrorIs(t, err, index.ErrMissingNamespace)

	_, err = s.Scan(ctx, "", 0)
	assert.ErrorIs(t, err, index.ErrMissingNamespace)

	err = s.Delete(ctx, "", []string{"x"})
	assert.ErrorIs(t, err, index.ErrMissingNamespace)
}
