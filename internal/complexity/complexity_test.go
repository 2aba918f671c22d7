package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_SimpleRequest(t *testing.T) {
	res := Score("fix a typo", nil)

	assert.Less(t, res.Score, 0.4)
	assert.Empty(t, res.Domains)
	assert.Zero(t, res.Factors.Steps)
	assert.Zero(t, res.Factors.Risk)
	assert.Equal(t, 0.4, res.Factors.Novelty)
}

func TestScore_MultiDomainComplex(t *testing.T) {
	res := Score("security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability", nil)

	assert.GreaterOrEqual(t, res.Factors.Steps, 0.5)
	assert.GreaterOrEqual(t, res.Factors.Domains, 0.75)
	assert.GreaterOrEqual(t, res.Factors.Risk, 0.6)
	assert.Greater(t, res.Score, 0.6)
	assert.Contains(t, res.Domains, "security")
	assert.Contains(t, res.Domains, "database")
	assert.Contains(t, res.Domains, "infrastructure")
}

func TestScore_Deterministic(t *testing.T) {
	ctx := &Context{
		SessionDepth:       3,
		RecentDomains:      []string{"backend"},
		DomainSuccessRates: map[string]float64{"database": 0.3},
	}
	text := "investigate why the api might be slow, then add an index to the database"

	first := Score(text, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(text, ctx))
	}
}

func TestScore_RoundedToTwoDecimals(t *testing.T) {
	res := Score("deploy the service then run the tests", nil)
	assert.InDelta(t, res.Score, Round2(res.Score), 1e-12)
}

func TestStepsFactor(t *testing.T) {
	t.Run("connectors", func(t *testing.T) {
		res := Score("update the schema and then run the migration and then verify", nil)
		assert.GreaterOrEqual(t, res.Factors.Steps, 0.5)
	})

	t.Run("numbered list", func(t *testing.T) {
		res := Score("1. add the column\n2. backfill data\n3. drop the old column", nil)
		assert.GreaterOrEqual(t, res.Factors.Steps, 0.5)
	})

	t.Run("single clause", func(t *testing.T) {
		res := Score("rename the variable", nil)
		assert.Zero(t, res.Factors.Steps)
	})
}

func TestDomainsFactor(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{{0, 0}, {1, 0.25}, {2, 0.75}, {3, 1.0}, {5, 1.0}}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domainsFactor(tc.n))
	}
}

func TestDomainMatching_KoreanJapanese(t *testing.T) {
	t.Run("korean deploy", func(t *testing.T) {
		res := Score("서비스를 배포", nil)
		assert.Contains(t, res.Domains, "infrastructure")
		assert.Greater(t, res.Factors.Risk, 0.0)
	})

	t.Run("japanese database", func(t *testing.T) {
		res := Score("データベースのマイグレーション", nil)
		assert.Contains(t, res.Domains, "database")
	})
}

func TestShortKeywordsMatchWholeWordsOnly(t *testing.T) {
	t.Run("guide does not hit frontend ui", func(t *testing.T) {
		res := Score("write a style guide", nil)
		assert.NotContains(t, res.Domains, "frontend")
	})

	t.Run("bare api hits backend", func(t *testing.T) {
		res := Score("document the api", nil)
		assert.Contains(t, res.Domains, "backend")
	})
}

func TestUncertaintyFactor(t *testing.T) {
	certain := Score("add a health endpoint", nil)
	uncertain := Score("maybe investigate why this might fail?", nil)
	assert.Greater(t, uncertain.Factors.Uncertainty, certain.Factors.Uncertainty)
	assert.GreaterOrEqual(t, uncertain.Factors.Uncertainty, 0.9)
}

func TestRiskFactor_Compounds(t *testing.T) {
	one := Score("delete the temp file", nil)
	three := Score("delete the production data during the migration", nil)

	assert.InDelta(t, 0.3, one.Factors.Risk, 1e-9)
	// Three hits compound beyond linear growth.
	assert.Greater(t, three.Factors.Risk, 3*one.Factors.Risk-0.3)
	assert.LessOrEqual(t, three.Factors.Risk, 1.0)
}

func TestNoveltyFactor(t *testing.T) {
	t.Run("cold session", func(t *testing.T) {
		assert.Equal(t, 0.4, Score("hello", nil).Factors.Novelty)
		assert.Equal(t, 0.4, Score("hello", &Context{}).Factors.Novelty)
	})

	t.Run("new domain adds novelty", func(t *testing.T) {
		ctx := &Context{SessionDepth: 4, RecentDomains: []string{"frontend"}}
		res := Score("tune the database index", ctx)
		assert.GreaterOrEqual(t, res.Factors.Novelty, 0.3)
	})

	t.Run("struggling domain adds novelty", func(t *testing.T) {
		ctx := &Context{
			SessionDepth:       4,
			RecentDomains:      []string{"database"},
			DomainSuccessRates: map[string]float64{"database": 0.2},
		}
		res := Score("tune the database index", ctx)
		assert.GreaterOrEqual(t, res.Factors.Novelty, 0.2)
	})

	t.Run("decays with depth", func(t *testing.T) {
		shallow := Score("tune the database index", &Context{SessionDepth: 1, RecentDomains: []string{"database"}})
		deep := Score("tune the database index", &Context{SessionDepth: 20, RecentDomains: []string{"database"}})
		assert.Greater(t, shallow.Factors.Novelty, deep.Factors.Novelty)
	})
}

func TestSplitClauses(t *testing.T) {
	t.Run("numbered takes precedence", func(t *testing.T) {
		clauses := SplitClauses("1. build it\n2. test it, carefully")
		require.Len(t, clauses, 2)
		assert.Equal(t, "build it", clauses[0])
	})

	t.Run("connector split", func(t *testing.T) {
		clauses := SplitClauses("build the binary and then run the tests")
		require.Len(t, clauses, 2)
	})

	t.Run("single", func(t *testing.T) {
		clauses := SplitClauses("just one thing")
		require.Len(t, clauses, 1)
	})

	t.Run("japanese connector", func(t *testing.T) {
		clauses := SplitClauses("ビルドする次にテストする")
		require.Len(t, clauses, 2)
	})
}
