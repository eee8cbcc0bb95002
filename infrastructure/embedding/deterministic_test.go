package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicBackendReproducible(t *testing.T) {
	b := NewDeterministicBackend()
	ctx := context.Background()

	a, err := b.EmbedOne(ctx, "Запрос к справочнику номенклатуры")
	require.NoError(t, err)
	c, err := b.EmbedOne(ctx, "Запрос к справочнику номенклатуры")
	require.NoError(t, err)
	assert.Equal(t, a, c, "identical text must yield an identical vector")

	other, err := b.EmbedOne(ctx, "Открытие управляемой формы")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestDeterministicBackendDimension(t *testing.T) {
	b := NewDeterministicBackend()
	dim, err := b.ProbeDimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeterministicDimension, dim)

	vecs, err := b.EmbedMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], DeterministicDimension)
}

func TestDeterministicBackendCaseAndNormInsensitive(t *testing.T) {
	b := NewDeterministicBackend()
	ctx := context.Background()

	upper, err := b.EmbedOne(ctx, "СТРНАЙТИ")
	require.NoError(t, err)
	lower, err := b.EmbedOne(ctx, "стрнайти")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}

func TestDeterministicBackendEmptyText(t *testing.T) {
	b := NewDeterministicBackend()
	vec, err := b.EmbedOne(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, DeterministicDimension)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestPlaceholderVectorContentDerived(t *testing.T) {
	a := PlaceholderVector("text", 8)
	b := PlaceholderVector("text", 8)
	c := PlaceholderVector("other", 8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 8)
}
