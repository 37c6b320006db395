package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/config"
	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func defaultWeights() config.RerankerConfig {
	return config.RerankerConfig{
		SchemaAdherenceWeight:   15,
		JoinMatchWeight:         20,
		ResultShapeWeight:       10,
		ValueVerificationWeight: 10,
	}
}

func TestRerank_GroundedCandidateWins(t *testing.T) {
	r := New(defaultWeights(), nil, zap.NewNop())
	candidates := []models.SQLCandidate{
		{Index: 0, SQL: "SELECT x FROM payroll_runs;"},
		{Index: 1, SQL: "SELECT e.salary FROM employees e;"},
	}

	result := r.Rerank(context.Background(), candidates, Context{
		Question: "Employee salaries",
		Packet:   hrPacket(),
	})

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, 1, result.Candidates[0].Index)
	assert.Greater(t, result.Candidates[0].Score, result.Candidates[1].Score)
	assert.Equal(t, 1.0, result.Candidates[0].ScoreBreakdown.SchemaAdherence)
	assert.Equal(t, 0.0, result.Candidates[1].ScoreBreakdown.SchemaAdherence)
}

func TestRerank_DoesNotMutateInput(t *testing.T) {
	r := New(defaultWeights(), nil, zap.NewNop())
	candidates := []models.SQLCandidate{
		{Index: 0, SQL: "SELECT x FROM payroll_runs;"},
		{Index: 1, SQL: "SELECT e.salary FROM employees e;"},
	}

	r.Rerank(context.Background(), candidates, Context{Packet: hrPacket()})

	assert.Equal(t, 0, candidates[0].Index)
	assert.Zero(t, candidates[0].Score)
	assert.Zero(t, candidates[0].ScoreBreakdown.BonusTotal)
}

func TestRerank_BonusArithmetic(t *testing.T) {
	r := New(defaultWeights(), nil, zap.NewNop())
	candidates := []models.SQLCandidate{
		{Index: 0, SQL: "SELECT COUNT(*) FROM employees;", Score: 2},
	}

	result := r.Rerank(context.Background(), candidates, Context{
		Question: "How many employees are there?",
		Packet:   hrPacket(),
	})

	c := result.Candidates[0]
	// adherence 1.0 (COUNT is a call, employees is known), join 1.0 (no
	// plan), shape 1.0 (count for count).
	assert.InDelta(t, 15+20+10, c.ScoreBreakdown.BonusTotal, 1e-9)
	assert.InDelta(t, 2+45, c.Score, 1e-9)
	assert.Zero(t, c.ScoreBreakdown.ValueVerification)
}

func TestRerank_TieBreaks(t *testing.T) {
	r := New(config.RerankerConfig{}, nil, zap.NewNop())
	sql := "SELECT e.salary FROM employees e;"
	candidates := []models.SQLCandidate{
		{Index: 2, SQL: sql, Score: 10},
		{Index: 0, SQL: sql, Score: 10, Rejected: true},
		{Index: 1, SQL: sql, Score: 10, ExplainPassed: true},
	}

	result := r.Rerank(context.Background(), candidates, Context{Packet: hrPacket()})

	order := []int{result.Candidates[0].Index, result.Candidates[1].Index, result.Candidates[2].Index}
	// Non-rejected beat rejected; EXPLAIN-passed beats not; index last.
	assert.Equal(t, []int{1, 2, 0}, order)
}

func TestRerank_ValueVerificationProbesTopTwoOnly(t *testing.T) {
	store := &valueStore{exists: func(_, _, _ string) (bool, error) {
		return true, nil
	}}
	r := New(defaultWeights(), store, zap.NewNop())
	candidates := []models.SQLCandidate{
		{Index: 0, SQL: "SELECT * FROM employees WHERE status = 'active';"},
		{Index: 1, SQL: "SELECT * FROM employees WHERE status = 'on_leave';"},
		{Index: 2, SQL: "SELECT * FROM employees WHERE status = 'retired';"},
	}

	result := r.Rerank(context.Background(), candidates, Context{
		Packet:       statusPacket(),
		VerifyValues: true,
	})

	assert.True(t, result.Details.VerificationUsed)
	assert.Equal(t, 2, result.Details.ValueChecksRun)
	assert.Equal(t, 2, store.calls)
}

func TestRerank_VerificationOffByDefault(t *testing.T) {
	store := &valueStore{}
	r := New(defaultWeights(), store, zap.NewNop())

	result := r.Rerank(context.Background(), []models.SQLCandidate{
		{SQL: "SELECT * FROM employees WHERE status = 'active';"},
	}, Context{Packet: statusPacket()})

	assert.False(t, result.Details.VerificationUsed)
	assert.Zero(t, result.Details.ValueChecksRun)
	assert.Zero(t, store.calls)
}

func TestRerank_Deterministic(t *testing.T) {
	r := New(defaultWeights(), nil, zap.NewNop())
	candidates := []models.SQLCandidate{
		{Index: 0, SQL: "SELECT d.department_name FROM departments d;"},
		{Index: 1, SQL: "SELECT e.salary FROM employees e;"},
		{Index: 2, SQL: "SELECT x FROM nowhere;"},
	}
	rctx := Context{Question: "average salary by department", Packet: hrPacket()}

	first := r.Rerank(context.Background(), candidates, rctx)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Rerank(context.Background(), candidates, rctx))
	}
}
