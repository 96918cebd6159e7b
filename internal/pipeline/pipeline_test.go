package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/executor"
	"github.com/abhisek/querywise/internal/explain"
	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/sqlgen"
	"github.com/abhisek/querywise/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type eventSink struct {
	mu     sync.Mutex
	events []store.InteractionEventData
	err    error
}

func (s *eventSink) AppendInteraction(_ context.Context, e store.InteractionEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) all() []store.InteractionEventData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.InteractionEventData(nil), s.events...)
}

type fixture struct {
	pipeline  *Pipeline
	generator *llm.MockProvider
	explainer *llm.MockProvider
	profiles  *profile.Store
	events    *eventSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithMaxRows(t, 0)
}

func newFixtureWithMaxRows(t *testing.T, maxRows int) *fixture {
	t.Helper()
	ctx := context.Background()

	raw, err := sql.Open(executor.DriverSQLite, filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	_, err = raw.ExecContext(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY, region TEXT, amount REAL)`)
	require.NoError(t, err)
	for i := 1; i <= 20; i++ {
		_, err := raw.ExecContext(ctx, `INSERT INTO orders (region, amount) VALUES (?, ?)`, fmt.Sprintf("r%d", i%3), i*10)
		require.NoError(t, err)
	}
	db := executor.New(raw, executor.DriverSQLite).WithMaxRows(maxRows)

	f := &fixture{
		generator: llm.NewMockProvider(),
		explainer: llm.NewMockProvider(),
		profiles:  profile.NewStore(profile.NewMemoryBackend()),
		events:    &eventSink{},
	}
	f.pipeline, err = New(Deps{
		Generator: sqlgen.NewGenerator(f.generator, db, nil),
		Executor:  db,
		Assessor:  cognitive.NewEngine(),
		Profiles:  f.profiles,
		Explainer: explain.NewBuilder(f.explainer, nil),
		Events:    f.events,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) completion(stmt string) {
	f.generator.AddResponse(llm.MockText("REASONING:\nplan\nSQL:\n" + stmt))
}

func TestRun_JoinForNovice(t *testing.T) {
	f := newFixture(t)
	f.completion("SELECT a.id, a.amount FROM orders a JOIN orders b ON a.id = b.id")
	f.explainer.AddResponse(llm.MockText("EXPLANATION:\nJoins orders to itself.\nSQL_CONCEPTS:\nJOIN\nLEARNING_OBJECTIVES:\nSelf joins"))

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "orders joined to themselves"})
	require.NoError(t, err)

	assert.True(t, out.Result.Success)
	assert.Equal(t, 3, out.Result.Complexity)
	assert.Equal(t, "plan", out.Result.Rationale)
	assert.Equal(t, 20, out.Result.TotalRows)
	assert.Len(t, out.Result.Rows, DefaultRowLimit)

	assert.Equal(t, concept.Joins, out.Assessment.Concept)
	assert.True(t, out.Assessment.ExplanationNeeded)
	assert.Equal(t, cognitive.Basic, out.Assessment.ExplanationType)
	assert.Equal(t, cognitive.ProvenanceRule, out.Assessment.Provenance)

	require.NotNil(t, out.Explanation)
	assert.Equal(t, "Joins orders to itself.", out.Explanation.Text)

	require.Len(t, out.Profile.History, 1)
	assert.Equal(t, concept.Joins, out.Profile.History[0].Concept)
	assert.True(t, out.Profile.History[0].ExplanationGiven)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, out.ID, events[0].ID)
	assert.True(t, events[0].Success)
	assert.True(t, events[0].ExplanationGenerated)
	assert.Equal(t, "joins", events[0].Concept)
	assert.Equal(t, "rule", events[0].Provenance)
}

func TestRun_OverloadLimitsRows(t *testing.T) {
	f := newFixture(t)
	f.completion("SELECT id, RANK() OVER (ORDER BY amount DESC) AS r FROM orders")
	f.explainer.AddResponse(llm.MockText("EXPLANATION:\nRanks orders."))

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "rank orders"})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Result.Complexity)
	assert.Len(t, out.Result.Rows, OverloadedRowLimit)
	assert.Equal(t, 20, out.Result.TotalRows)
}

func TestRun_TruncatedResultIsReported(t *testing.T) {
	f := newFixtureWithMaxRows(t, 12)
	f.completion("SELECT id FROM orders ORDER BY id")

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "list orders"})
	require.NoError(t, err)
	assert.True(t, out.Result.Truncated)
	assert.Equal(t, 12, out.Result.TotalRows)

	f.completion("SELECT id FROM orders WHERE id <= 3")
	out, err = f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "first orders"})
	require.NoError(t, err)
	assert.False(t, out.Result.Truncated)
	assert.Equal(t, 3, out.Result.TotalRows)
}

func TestRun_ExpertPromotion(t *testing.T) {
	f := newFixture(t)
	_, err := f.profiles.Seed(context.Background(), "eve", 5)
	require.NoError(t, err)
	f.completion("SELECT id, RANK() OVER (ORDER BY amount DESC) AS r FROM orders")

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "eve", Question: "rank orders"})
	require.NoError(t, err)
	assert.False(t, out.Assessment.ExplanationNeeded)
	assert.Nil(t, out.Explanation)
	assert.Equal(t, 2, out.Profile.ConceptLevel(concept.WindowFunctions))
	assert.Equal(t, 0, f.explainer.CallCount())
	// Capacity 3 from seeding; load 5 still caps the rows.
	assert.Len(t, out.Result.Rows, OverloadedRowLimit)
}

func TestRun_ParseFailure(t *testing.T) {
	f := newFixture(t)
	f.generator.AddResponse(llm.MockText("Sorry, I cannot help with that."))

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "???"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrParseFailure)

	p, err := f.profiles.Get(context.Background(), "ana")
	require.NoError(t, err)
	assert.Empty(t, p.History)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.NotEmpty(t, events[0].ErrorMessage)
}

func TestRun_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.generator.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})

	_, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "q"})
	assert.ErrorIs(t, err, ErrGeneration)
	var unavailable *llm.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestRun_ExecutionFailure(t *testing.T) {
	f := newFixture(t)
	f.completion("SELECT revenue FROM sales")
	f.explainer.AddResponse(llm.MockText("EXPLANATION:\nThere is no sales table."))

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "ana", Question: "revenue?"})
	require.NoError(t, err)

	assert.False(t, out.Result.Success)
	assert.Contains(t, out.Result.Error, "no such table")
	assert.Equal(t, cognitive.ErrorHandling, out.Assessment.ExplanationType)
	assert.Equal(t, concept.Error, out.Assessment.Concept)
	assert.Equal(t, 5, out.Assessment.IntrinsicLoad)
	require.NotNil(t, out.Explanation)
	assert.Equal(t, "error_handling", out.Explanation.Level)
	assert.Contains(t, f.explainer.LastCall().Messages[0].Content, "no such table")

	events := f.events.all()
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "error", events[0].Concept)
}

func TestRun_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Run(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, profile.ErrEmptyUserID)
	_, err = f.pipeline.Run(context.Background(), Request{UserID: "ana"})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 0, f.generator.CallCount())
}

func TestRun_EventLogFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("disk full")
	_, err := f.profiles.Seed(context.Background(), "eve", 5)
	require.NoError(t, err)
	f.completion("SELECT id FROM orders")

	out, err := f.pipeline.Run(context.Background(), Request{UserID: "eve", Question: "ids"})
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
}

func TestRun_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t)
	const n = 8
	for i := 0; i < n; i++ {
		f.completion("SELECT id FROM orders WHERE amount > 50")
	}
	_, err := f.profiles.Seed(context.Background(), "zed", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.pipeline.Run(context.Background(), Request{UserID: "zed", Question: fmt.Sprintf("q%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := f.profiles.Get(context.Background(), "zed")
	require.NoError(t, err)
	assert.Len(t, p.History, n)
	assert.Len(t, f.events.all(), n)
}

func TestRowLimit(t *testing.T) {
	assert.Equal(t, OverloadedRowLimit, RowLimit(4, 3))
	assert.Equal(t, DefaultRowLimit, RowLimit(3, 3))
	assert.Equal(t, DefaultRowLimit, RowLimit(1, 5))
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
