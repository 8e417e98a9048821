package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub006/internal/embeddings"
	"github.com/Smashkat12/crechebooks-sub006/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector or a scripted error.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (*embeddings.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embeddings.Result{
		Vector:     f.vector,
		Dimensions: len(f.vector),
		Provider:   "hash",
	}, nil
}

// fakeVectors is a scriptable vectorstore.Store recording inserts.
type fakeVectors struct {
	mu            sync.Mutex
	inserted      map[string][]vectorstore.Document
	insertTenants []string
	searchHits    []vectorstore.SearchResult
	failInserts   bool
	failSearch    bool
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{inserted: make(map[string][]vectorstore.Document)}
}

func (f *fakeVectors) EnsureCollection(_ context.Context, name string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inserted[name]; !ok {
		f.inserted[name] = nil
	}
	return nil
}

func (f *fakeVectors) Insert(ctx context.Context, collection string, docs []vectorstore.Document) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return nil, errors.New("vector store down")
	}
	if tenant, err := vectorstore.TenantFromContext(ctx); err == nil {
		f.insertTenants = append(f.insertTenants, tenant.TenantID)
	} else {
		f.insertTenants = append(f.insertTenants, "")
	}
	f.inserted[collection] = append(f.inserted[collection], docs...)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (f *fakeVectors) Search(_ context.Context, _ string, _ []float32, _ int) ([]vectorstore.SearchResult, error) {
	if f.failSearch {
		return nil, errors.New("vector store down")
	}
	return f.searchHits, nil
}

func (f *fakeVectors) Delete(context.Context, string, []string) error { return nil }

func (f *fakeVectors) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.inserted[name]
	return ok, nil
}

func (f *fakeVectors) ListCollections(context.Context) ([]string, error) { return nil, nil }

func (f *fakeVectors) GetCollectionInfo(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return nil, vectorstore.ErrCollectionNotFound
}

func (f *fakeVectors) Close() error { return nil }

func (f *fakeVectors) tenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.insertTenants...)
}

func (f *fakeVectors) docs(collection string) []vectorstore.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vectorstore.Document(nil), f.inserted[collection]...)
}

func newTestLedger(t *testing.T, embedder Embedder, vectors vectorstore.Store) *Ledger {
	t.Helper()
	store := newTestStore(t)
	l, err := NewLedger(store, embedder, vectors, 0.55, nil, nil)
	require.NoError(t, err)
	return l
}

func TestLedger_RecordDecisionDualWrite(t *testing.T) {
	vectors := newFakeVectors()
	l := newTestLedger(t, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors)

	id, err := l.RecordDecision(context.Background(), RecordDecisionParams{
		TenantID:        "t1",
		AgentType:       "categorizer",
		InputText:       "Woolworths Foods",
		DecisionPayload: `{"category":"5200"}`,
		Confidence:      80,
		Source:          SourceModel,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// The vector write is asynchronous.
	l.Wait()

	docs := vectors.docs("decisions_t1")
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "Woolworths Foods", docs[0].Content)
	assert.Equal(t, "categorizer", docs[0].Metadata["agent_type"])

	// The detached write ran inside the decision's tenant.
	assert.Equal(t, []string{"t1"}, vectors.tenants())

	// The authoritative row exists too.
	d, err := l.Store().GetDecision(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint("Woolworths Foods"), d.InputFingerprint)
}

func TestLedger_VectorOutageDoesNotFailDecision(t *testing.T) {
	vectors := newFakeVectors()
	vectors.failInserts = true
	l := newTestLedger(t, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors)

	id, err := l.RecordDecision(context.Background(), RecordDecisionParams{
		TenantID:   "t1",
		AgentType:  "categorizer",
		InputText:  "engen fuel",
		Confidence: 70,
		Source:     SourceModel,
	})
	require.NoError(t, err, "ledger write succeeds regardless of the vector store")
	l.Wait()

	_, err = l.Store().GetDecision(context.Background(), "t1", id)
	assert.NoError(t, err)
	assert.Empty(t, vectors.docs("decisions_t1"))
}

func TestLedger_EmbeddingFailureDoesNotFailDecision(t *testing.T) {
	vectors := newFakeVectors()
	l := newTestLedger(t, &fakeEmbedder{err: errors.New("all providers down")}, vectors)

	_, err := l.RecordDecision(context.Background(), RecordDecisionParams{
		TenantID:   "t1",
		AgentType:  "categorizer",
		InputText:  "engen fuel",
		Confidence: 70,
		Source:     SourceModel,
	})
	require.NoError(t, err)
	l.Wait()
	assert.Empty(t, vectors.docs("decisions_t1"))
}

func TestLedger_FindSimilarPrefersVectorSearch(t *testing.T) {
	vectors := newFakeVectors()
	l := newTestLedger(t, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors)
	ctx := context.Background()

	id, err := l.RecordDecision(ctx, RecordDecisionParams{
		TenantID: "t1", AgentType: "categorizer", InputText: "woolworths foods",
		Confidence: 80, Source: SourceModel,
	})
	require.NoError(t, err)
	l.Wait()

	vectors.searchHits = []vectorstore.SearchResult{
		{ID: id, Score: 0.92, Metadata: map[string]string{"agent_type": "categorizer"}},
	}

	decisions, err := l.FindSimilarDecisions(ctx, "t1", "categorizer", "woolworths", 5)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, id, decisions[0].ID)
}

func TestLedger_FindSimilarFiltersByThresholdAndAgent(t *testing.T) {
	vectors := newFakeVectors()
	l := newTestLedger(t, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors)
	ctx := context.Background()

	id, err := l.RecordDecision(ctx, RecordDecisionParams{
		TenantID: "t1", AgentType: "categorizer", InputText: "woolworths foods",
		Confidence: 80, Source: SourceModel,
	})
	require.NoError(t, err)
	l.Wait()

	// One hit below the acceptance threshold, one for the wrong agent.
	vectors.searchHits = []vectorstore.SearchResult{
		{ID: id, Score: 0.30, Metadata: map[string]string{"agent_type": "categorizer"}},
		{ID: id, Score: 0.95, Metadata: map[string]string{"agent_type": "matcher"}},
	}

	// Both hits rejected; exact fingerprint match takes over.
	decisions, err := l.FindSimilarDecisions(ctx, "t1", "categorizer", "Woolworths   FOODS", 5)
	require.NoError(t, err)
	require.Len(t, decisions, 1, "fingerprint fallback must fill in")
	assert.Equal(t, id, decisions[0].ID)
}

func TestLedger_FindSimilarFallsBackOnOutage(t *testing.T) {
	vectors := newFakeVectors()
	l := newTestLedger(t, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectors)
	ctx := context.Background()

	id, err := l.RecordDecision(ctx, RecordDecisionParams{
		TenantID: "t1", AgentType: "categorizer", InputText: "woolworths foods",
		Confidence: 80, Source: SourceModel,
	})
	require.NoError(t, err)
	l.Wait()

	vectors.failSearch = true

	decisions, err := l.FindSimilarDecisions(ctx, "t1", "categorizer", "woolworths foods", 5)
	require.NoError(t, err, "store outage must degrade, not fail")
	require.Len(t, decisions, 1)
	assert.Equal(t, id, decisions[0].ID)

	// A non-matching fingerprint simply returns nothing.
	decisions, err = l.FindSimilarDecisions(ctx, "t1", "categorizer", "something else", 5)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestLedger_RecordCorrection(t *testing.T) {
	l := newTestLedger(t, nil, nil)
	ctx := context.Background()

	id, err := l.RecordDecision(ctx, RecordDecisionParams{
		TenantID: "t1", AgentType: "categorizer", InputText: "woolworths foods",
		Confidence: 80, Source: SourceModel,
	})
	require.NoError(t, err)

	c, err := l.RecordCorrection(ctx, &Correction{
		TenantID:       "t1",
		DecisionID:     id,
		CorrectedValue: "5200",
		CorrectedBy:    "reviewer@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID, "correction ID is generated when absent")
	assert.Equal(t, "woolworths foods", c.OriginalValue, "original value defaults to the decision input")
	assert.False(t, c.AppliedToPattern)
}
