package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub006/internal/bootstrap"
	"github.com/Smashkat12/crechebooks-sub006/internal/embeddings"
	"github.com/Smashkat12/crechebooks-sub006/internal/ledger"
	"github.com/Smashkat12/crechebooks-sub006/internal/learner"
	"github.com/Smashkat12/crechebooks-sub006/internal/vectorstore"
)

// newTestService wires a complete in-memory service: hash embeddings,
// embedded vector store, sqlite ledger.
func newTestService(t *testing.T) *Service {
	t.Helper()

	hash, err := embeddings.NewHashProvider(64)
	require.NoError(t, err)
	pipeline, err := embeddings.NewPipelineWithProviders(
		[]embeddings.Provider{hash}, 128, time.Minute, nil, nil)
	require.NoError(t, err)

	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)

	store, err := ledger.Open(ledger.InMemoryPath, nil)
	require.NoError(t, err)

	led, err := ledger.NewLedger(store, pipeline, vectors, 0.55, nil, nil)
	require.NoError(t, err)

	lr, err := learner.NewLearner(learner.Config{FlushInterval: time.Hour}, store, pipeline, vectors, nil, nil)
	require.NoError(t, err)

	seeder, err := bootstrap.NewSeeder(bootstrap.Config{Enabled: true}, store, lr, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(pipeline, vectors, led, lr, seeder, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func recordDecision(t *testing.T, svc *Service, tenantID, input, payload string) string {
	t.Helper()
	id, err := svc.EmbedAndRecordDecision(context.Background(), ledger.RecordDecisionParams{
		TenantID:        tenantID,
		AgentType:       "categorizer",
		InputText:       input,
		DecisionPayload: payload,
		Confidence:      85,
		Source:          ledger.SourceModel,
	})
	require.NoError(t, err)
	return id
}

func correct(t *testing.T, svc *Service, tenantID, decisionID, original, correctedValue string) *learner.PatternLearnResult {
	t.Helper()
	res, err := svc.RecordCorrection(context.Background(), &ledger.Correction{
		TenantID:       tenantID,
		DecisionID:     decisionID,
		OriginalValue:  original,
		CorrectedValue: correctedValue,
		CorrectedBy:    "reviewer@example.com",
	})
	require.NoError(t, err)
	return res
}

// Three corrections of the same merchant to the same account create one
// pattern; the fourth occurrence is answered by the pattern before any
// model runs.
func TestService_CorrectionsBecomePattern(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inputs := []string{"WOOLWORTHS FOODS CLAREMONT", "Woolworths Foods Claremont", "woolworths  foods claremont"}
	for i, input := range inputs {
		id := recordDecision(t, svc, "t1", input, "5100")
		res := correct(t, svc, "t1", id, "woolworths foods claremont", "5200")
		if i < 2 {
			assert.False(t, res.PatternCreated, "correction %d is below the threshold", i+1)
		} else {
			assert.True(t, res.PatternCreated, "third correction promotes")
		}
	}

	p, err := svc.MatchPattern(ctx, "t1", "WOOLWORTHS   Foods Claremont")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "5200", p.TargetValue)
	assert.Equal(t, ledger.PatternSourceLearned, p.Source)

	// Other tenants never see the pattern.
	other, err := svc.MatchPattern(ctx, "t2", "woolworths foods claremont")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestService_ManualPatternWins(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveManualPattern(ctx, "t1", "Engen Fuel", "5400"))

	var last *learner.PatternLearnResult
	for i := 0; i < 3; i++ {
		id := recordDecision(t, svc, "t1", "Engen Fuel", "5100")
		last = correct(t, svc, "t1", id, "engen fuel", "9999")
	}
	assert.False(t, last.PatternCreated)
	assert.Equal(t, "manual pattern precedence", last.Reason)

	p, err := svc.MatchPattern(ctx, "t1", "engen  FUEL")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "5400", p.TargetValue)
	assert.Equal(t, ledger.PatternSourceManual, p.Source)
}

func TestService_FindSimilar(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id := recordDecision(t, svc, "t1", "checkers hyper cape town groceries", "5200")
	recordDecision(t, svc, "t1", "totally unrelated telecom invoice", "5800")
	svc.ledger.Wait()

	hits, err := svc.FindSimilar(ctx, "t1", "categorizer", "checkers hyper cape town groceries", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, id, hits[0].ID)

	// A tenant with no history gets an empty result, not an error.
	empty, err := svc.FindSimilar(ctx, "t2", "categorizer", "checkers hyper cape town groceries", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_AccuracyStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	good := recordDecision(t, svc, "t1", "engen fuel station", "5400")
	_ = good
	bad := recordDecision(t, svc, "t1", "woolworths foods", "5100")
	correct(t, svc, "t1", bad, "woolworths foods", "5200")

	stats, err := svc.GetAccuracyStats(ctx, "t1", "categorizer")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Reviewed)
	assert.Equal(t, 0, stats.Correct)
}

func TestService_BootstrapStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.Nil(t, svc.GetBootstrapStatus(), "no status before bootstrap runs")

	recordDecision(t, svc, "t1", "engen fuel station", "5400")

	stats := svc.Bootstrap(ctx)
	require.NotNil(t, stats)
	assert.False(t, stats.Skipped)
	assert.Same(t, stats, svc.GetBootstrapStatus())

	second := svc.Bootstrap(ctx)
	assert.True(t, second.Skipped)
}

func TestService_MissingTenantRejected(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.EmbedAndRecordDecision(context.Background(), ledger.RecordDecisionParams{
		AgentType: "categorizer",
		InputText: "engen fuel",
		Source:    ledger.SourceModel,
	})
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTenant)

	_, err = svc.FindSimilar(context.Background(), "", "categorizer", "engen fuel", 5)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTenant)
}

func TestService_ContextTenantMismatchRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := vectorstore.ContextWithTenant(context.Background(), &vectorstore.TenantInfo{TenantID: "t1"})

	// A context already scoped to one tenant cannot be reused for another.
	_, err := svc.FindSimilar(ctx, "t2", "categorizer", "engen fuel", 5)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTenant)

	_, err = svc.EmbedAndRecordDecision(ctx, ledger.RecordDecisionParams{
		TenantID:  "t2",
		AgentType: "categorizer",
		InputText: "engen fuel",
		Source:    ledger.SourceModel,
	})
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTenant)

	// The matching tenant proceeds.
	_, err = svc.FindSimilar(ctx, "t1", "categorizer", "engen fuel", 5)
	assert.NoError(t, err)
}
