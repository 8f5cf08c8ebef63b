package rag_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doppelkit/clone-go-sdk/core"
	"github.com/doppelkit/clone-go-sdk/embed/mock"
	"github.com/doppelkit/clone-go-sdk/index"
	"github.com/doppelkit/clone-go-sdk/index/chromem"
	"github.com/doppelkit/clone-go-sdk/memory"
	"github.com/doppelkit/clone-go-sdk/rag"
)

// failingIndex simulates a vector index outage on every operation.
type failingIndex struct{}

func (failingIndex) Upsert(ctx context.Context, namespace string, items []index.Item) error {
	return errors.New("connection refused")
}

func (failingIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]index.Match, error) {
	return nil, errors.New("connection refused")
}

func (failingIndex) Scan(ctx context.Context, namespace string, limit int) ([]core.Message, error) {
	return nil, errors.New("connection refused")
}

func (failingIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	return errors.New("connection refused")
}

func (failingIndex) Close() error { return nil }

// failingMemory simulates a memory store outage.
type failingMemory struct{}

func (failingMemory) Add(userID string, tier memory.Tier, content string) (memory.Item, error) {
	return memory.Item{}, errors.New("store down")
}

func (failingMemory) List(userID string, tier memory.Tier) ([]memory.Item, error) {
	return nil, errors.New("store down")
}

func (failingMemory) GetRelevant(userID, query string, fn memory.ScoreFunc) (memory.Result, error) {
	return memory.Result{}, errors.New("store down")
}

func newPipeline(t *testing.T) (*rag.Assembler, *mock.Embedder, *chromem.Store, *memory.TierStore) {
	t.Helper()
	idx, err := chromem.New()
	require.NoError(t, err)
	e := mock.New()
	mem := memory.NewTierStore()
	return rag.NewAssembler(e, idx, mem, nil), e, idx, mem
}

func historic(previous, text string, channel core.Channel) core.Message {
	return core.Message{
		Text:      text,
		Previous:  previous,
		Sender:    core.SenderClone,
		Channel:   channel,
		Timestamp: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Source:    "imessage",
	}
}

func TestBuildContextRequiresUser(t *testing.T) {
	a, _, _, _ := newPipeline(t)

	_, err := a.BuildContext(context.Background(), "what are we doing tonight?", nil, core.ChannelText, "")
	assert.ErrorIs(t, err, rag.ErrMissingUser)
}

func TestBuildContextGreetingShortCircuit(t *testing.T) {
	a, e, _, _ := newPipeline(t)

	out, err := a.BuildContext(context.Background(), "hey!", nil, core.ChannelText, "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "Respond naturally and briefly.")
	assert.Contains(t, out, "short and casual")
	assert.Equal(t, 0, e.Calls(), "trivial turns must not touch the embedder")
}

func TestBuildContextEmptyAndTinyQueries(t *testing.T) {
	a, e, _, _ := newPipeline(t)

	for _, q := range []string{"", "   ", "ok", "see you there"} {
		out, err := a.BuildContext(context.Background(), q, nil, core.ChannelDefault, "u1")
		require.NoError(t, err)
		assert.Contains(t, out, "Respond naturally and briefly.", "query: %q", q)
	}
	assert.Equal(t, 0, e.Calls())
}

func TestBuildContextRetrievesRelevantExample(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		historic("are you around this friday?", "yeah I'm free after 3pm", core.ChannelText),
		historic("did the package arrive?", "yep, left it by the door", core.ChannelText),
	}))

	out, err := a.BuildContext(ctx, "are you free this friday afternoon?", nil, core.ChannelText, "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "Past examples of how you reply:")
	assert.Contains(t, out, "yeah I'm free after 3pm")
	assert.Contains(t, out, "are you around this friday?")
	assert.Contains(t, out, "answer it helpfully", "a question should get question guidance")
	assert.Contains(t, out, "short and casual")
}

func TestBuildContextIncludesMemories(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	_, err := a.AddFact("u1", core.Fact{Category: "work", Text: "bartends at the corner bar"}, true)
	require.NoError(t, err)

	out, err := a.BuildContext(ctx, "what do you do for work these days?", nil, core.ChannelText, "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "What you know:")
	assert.Contains(t, out, "I know that work: bartends at the corner bar.")
}

func TestBuildContextRejectsEchoCandidates(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	query := "can you send me the final report today please?"
	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		// Echoes a 5-token run of the query verbatim.
		historic("report status?", "can you send me the final version first", core.ChannelText),
		historic("could you send over the final report today?", "sure, it'll be in your inbox by five", core.ChannelText),
	}))

	out, err := a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
	require.NoError(t, err)

	assert.NotContains(t, out, "can you send me the final version first")
	assert.Contains(t, out, "sure, it'll be in your inbox by five")
}

func TestBuildContextEmailRejectsCannedOpeners(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	canned := "Thank you for reaching out about the budget"
	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		historic("reaching out about the annual budget", canned, core.ChannelEmail),
		historic("reaching out about the budget review", "Happy to walk through it, I moved some line items to Q3", core.ChannelEmail),
	}))

	query := "reaching out about the quarterly budget review numbers"

	out, err := a.BuildContext(ctx, query, nil, core.ChannelEmail, "u1")
	require.NoError(t, err)
	assert.NotContains(t, out, canned, "canned acknowledgment openers are rejected on email")
	assert.Contains(t, out, "Happy to walk through it")
	assert.Contains(t, out, "Write this as an email")

	// The opener rule is email-only; the same candidate is fine over text.
	out, err = a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
	require.NoError(t, err)
	assert.Contains(t, out, canned)
}

func TestBuildContextKeywordFallback(t *testing.T) {
	ctx := context.Background()
	a, e, _, _ := newPipeline(t)

	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		historic("are you around this friday?", "yeah I'm free after 3pm", core.ChannelText),
	}))

	// Embedder goes down after ingestion; retrieval degrades to keyword
	// matching over the stored messages.
	e.SetFailing(true)

	out, err := a.BuildContext(ctx, "are you free this friday afternoon?", nil, core.ChannelText, "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "yeah I'm free after 3pm")
}

func TestBuildContextIndexDownMemoryOnly(t *testing.T) {
	ctx := context.Background()
	e := mock.New()
	mem := memory.NewTierStore()
	a := rag.NewAssembler(e, failingIndex{}, mem, nil)

	_, err := mem.Add("u1", memory.TierCore, "work: bartends at the corner bar")
	require.NoError(t, err)

	out, err := a.BuildContext(ctx, "what do you do for work these days?", nil, core.ChannelText, "u1")
	require.NoError(t, err)

	assert.NotContains(t, out, "Past examples")
	assert.Contains(t, out, "I know that work: bartends at the corner bar.")
}

func TestBuildContextEverythingDown(t *testing.T) {
	ctx := context.Background()
	e := mock.New()
	e.SetFailing(true)
	a := rag.NewAssembler(e, failingIndex{}, failingMemory{}, nil)

	out, err := a.BuildContext(ctx, "what do you do for work these days?", nil, core.ChannelEmail, "u1")
	require.NoError(t, err, "total outage still yields usable instructions")
	assert.Contains(t, out, "Respond naturally and briefly.")
	assert.Contains(t, out, "Write this as an email")
}

func TestBuildContextNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	require.NoError(t, a.Ingest(ctx, "alice", []core.Message{
		historic("are you around this friday?", "yeah I'm free after 3pm", core.ChannelText),
	}))

	out, err := a.BuildContext(ctx, "are you free this friday afternoon?", nil, core.ChannelText, "bob")
	require.NoError(t, err)
	assert.NotContains(t, out, "yeah I'm free after 3pm")
}

func TestRecordInteractionRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _, idx, _ := newPipeline(t)

	query := "are you coming to the concert saturday night?"
	response := "wouldn't miss it, grabbing tickets now"
	require.NoError(t, a.RecordInteraction(ctx, query, response, core.ChannelText, "u1"))

	// Same exchange recorded again must not duplicate.
	require.NoError(t, a.RecordInteraction(ctx, query, response, core.ChannelText, "u1"))

	msgs, err := idx.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, response, msgs[0].Text)
	assert.Equal(t, query, msgs[0].Previous)
	assert.Equal(t, core.SenderClone, msgs[0].Sender)
	assert.Equal(t, "conversation", msgs[0].Source)

	out, err := a.BuildContext(ctx, "coming to the concert saturday?", nil, core.ChannelText, "u1")
	require.NoError(t, err)
	assert.Contains(t, out, response)
}

func TestRecordInteractionSkipsWhenEmbeddingFails(t *testing.T) {
	ctx := context.Background()
	a, e, idx, _ := newPipeline(t)

	e.SetFailing(true)
	require.NoError(t, a.RecordInteraction(ctx, "query text here", "some response", core.ChannelText, "u1"),
		"embedding outage must not fail the write path")

	msgs, err := idx.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRecordInteractionValidation(t *testing.T) {
	ctx := context.Background()
	a, _, idx, _ := newPipeline(t)

	assert.ErrorIs(t, a.RecordInteraction(ctx, "q", "r", core.ChannelText, ""), rag.ErrMissingUser)

	require.NoError(t, a.RecordInteraction(ctx, "q", "   ", core.ChannelText, "u1"))
	msgs, err := idx.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "blank responses are not stored")
}

func TestIngestSkipsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	a, _, idx, _ := newPipeline(t)

	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		{Text: "   ", Source: "imessage"},
		historic("q", "a perfectly good reply", core.ChannelText),
	}))

	msgs, err := idx.Scan(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a perfectly good reply", msgs[0].Text)
}

func TestMarkBadExampleExcludesFromContext(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	msg := historic("are you around this friday?", "yeah I'm free after 3pm", core.ChannelText)
	msg.ID = core.ContentID(msg.Previous, msg.Text)
	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{msg}))

	query := "are you free this friday afternoon?"

	out, err := a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
	require.NoError(t, err)
	require.Contains(t, out, "yeah I'm free after 3pm")

	a.MarkBadExample("u1", msg.ID)

	out, err = a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
	require.NoError(t, err)
	assert.NotContains(t, out, "yeah I'm free after 3pm")
}

func TestAddFactTiers(t *testing.T) {
	a, _, _, mem := newPipeline(t)

	_, err := a.AddFact("u1", core.Fact{Category: "name", Text: "goes by Sam"}, true)
	require.NoError(t, err)
	_, err = a.AddFact("u1", core.Fact{Text: "mentioned a trip to Lisbon"}, false)
	require.NoError(t, err)

	coreItems, err := mem.List("u1", memory.TierCore)
	require.NoError(t, err)
	require.Len(t, coreItems, 1)
	assert.Equal(t, "name: goes by Sam", coreItems[0].Content)

	episodic, err := mem.List("u1", memory.TierEpisodic)
	require.NoError(t, err)
	require.Len(t, episodic, 1)
	assert.Equal(t, "mentioned a trip to Lisbon", episodic[0].Content)

	_, err = a.AddFact("", core.Fact{Text: "x"}, true)
	assert.ErrorIs(t, err, rag.ErrMissingUser)
}

func TestBuildContextDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newPipeline(t)

	require.NoError(t, a.Ingest(ctx, "u1", []core.Message{
		historic("are you around this friday?", "yeah I'm free after 3pm", core.ChannelText),
		historic("did the package arrive?", "yep, left it by the door", core.ChannelText),
	}))

	query := "are you free this friday afternoon?"
	first, err := a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := a.BuildContext(ctx, query, nil, core.ChannelText, "u1")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
