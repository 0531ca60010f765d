package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formbricks/promptrank/internal/models"
)

func TestBuildFilterConditions(t *testing.T) {
	t.Run("empty filter has no where clause", func(t *testing.T) {
		where, args := buildFilterConditions(models.PromptFilter{})

		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("categories use ANY", func(t *testing.T) {
		where, args := buildFilterConditions(models.PromptFilter{
			Categories: []models.Category{models.CategoryReference, models.CategoryCandidate},
		})

		assert.Equal(t, " WHERE category = ANY($1)", where)
		assert.Equal(t, []any{[]string{"reference", "candidate"}}, args)
	})

	t.Run("all conditions", func(t *testing.T) {
		where, args := buildFilterConditions(models.PromptFilter{
			Categories:       []models.Category{models.CategoryCandidate},
			Statuses:         []models.Status{models.StatusCompleted},
			MissingEmbedding: true,
		})

		assert.Equal(t, " WHERE category = ANY($1) AND status = ANY($2) AND embedding IS NULL", where)
		assert.Equal(t, []any{[]string{"candidate"}, []string{"completed"}}, args)
	})

	t.Run("status only starts at $1", func(t *testing.T) {
		where, args := buildFilterConditions(models.PromptFilter{Statuses: []models.Status{models.StatusFailed}})

		assert.Equal(t, " WHERE status = ANY($1)", where)
		assert.Len(t, args, 1)
	})
}

func TestBuildSQLiteFilterConditions(t *testing.T) {
	where, args := buildSQLiteFilterConditions(models.PromptFilter{
		Categories:       []models.Category{models.CategoryReference, models.CategoryCandidate},
		Statuses:         []models.Status{models.StatusCompleted},
		MissingEmbedding: true,
	})

	assert.Equal(t, " WHERE category IN (?, ?) AND status IN (?) AND embedding IS NULL", where)
	assert.Equal(t, []any{"reference", "candidate", "completed"}, args)
}

func TestPostgresSchemaFor(t *testing.T) {
	assert.Contains(t, postgresSchemaFor(1536), "embedding             vector(1536)")
	assert.Contains(t, postgresSchemaFor(128), "vector(128)")
}

func TestNullableEmbedding_Scan(t *testing.T) {
	var n nullableEmbedding

	assert.NoError(t, n.Scan(nil))
	assert.Nil(t, n)

	assert.NoError(t, n.Scan([]byte{}))
	assert.Nil(t, n)

	err := n.Scan("[1,2,3]")
	assert.ErrorIs(t, err, errEmbeddingScanInvalidType)
}
