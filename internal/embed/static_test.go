package embed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Embed_ReturnsConfiguredDimensions(t *testing.T) {
	// Given: a static embedder with 64 dimensions
	embedder := NewStaticEmbedder(64)
	defer func() { _ = embedder.Close() }()

	// When: I embed a sentence
	embedding, err := embedder.Embed(context.Background(), "The tenant shall pay rent monthly.")

	// Then: a 64-dimension unit vector is returned
	require.NoError(t, err)
	assert.Len(t, embedding, 64)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}

func TestStaticEmbedder_DefaultDimensions(t *testing.T) {
	assert.Equal(t, StaticDimensions, NewStaticEmbedder(0).Dimensions())
	assert.Equal(t, "static-256", NewStaticEmbedder(0).ModelName())
}

func TestStaticEmbedder_Embed_IsDeterministicAcrossInstances(t *testing.T) {
	// Given: two separate embedder instances
	a, b := NewStaticEmbedder(128), NewStaticEmbedder(128)
	text := "Termination requires thirty days written notice."

	// When: both embed the same text
	va, errA := a.Embed(context.Background(), text)
	vb, errB := b.Embed(context.Background(), text)

	// Then: the vectors are identical
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, va, vb)
}

func TestStaticEmbedder_Embed_BlankInput_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder(32)

	for _, text := range []string{"", "   \n\t"} {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, 32)
		assert.Zero(t, vectorMagnitude(vec))
	}
}

func TestStaticEmbedder_LexicalOverlap_RanksHigher(t *testing.T) {
	// Given: a query and two candidate passages
	embedder := NewStaticEmbedder(256)
	ctx := context.Background()
	query, _ := embedder.Embed(ctx, "security deposit refund")
	related, _ := embedder.Embed(ctx, "The security deposit is refunded within 30 days.")
	unrelated, _ := embedder.Embed(ctx, "Quarterly revenue grew in the northern region.")

	// Then: the passage sharing words is closer
	assert.Greater(t, cosineSimilarity(query, related), cosineSimilarity(query, unrelated))
}

func TestTokenize_SplitsOnNonAlphanumerics(t *testing.T) {
	assert.Equal(t, []string{"clause", "4", "2", "applies"}, tokenize("Clause 4.2 applies!"))
	assert.Equal(t, []string{"naïve", "café"}, tokenize("Naïve café"))
}

func TestStaticEmbedder_StopWordsOnly_ContributesNgramsOnly(t *testing.T) {
	// Given: text that is entirely stop words
	embedder := NewStaticEmbedder(64)

	// When: embedded
	vec, err := embedder.Embed(context.Background(), "the and of")

	// Then: the trigram signal still yields a non-zero unit vector
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorMagnitude(vec), 0.001)
}

func TestStaticEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	embedder := NewStaticEmbedder(64)
	texts := []string{"alpha clause", "", "gamma clause"}

	vecs, err := embedder.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, _ := embedder.Embed(context.Background(), "gamma clause")
	assert.Equal(t, single, vecs[2])
	assert.Zero(t, vectorMagnitude(vecs[1]))
}

func TestStaticEmbedder_Close(t *testing.T) {
	// Given: a closed embedder
	embedder := NewStaticEmbedder(16)
	require.NoError(t, embedder.Close())
	require.NoError(t, embedder.Close())

	// Then: it is unavailable and refuses work
	assert.False(t, embedder.Available(context.Background()))
	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestStaticEmbedder_LongText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder(64)
	_, err := embedder.Embed(context.Background(), strings.Repeat("lease agreement ", 5000))
	assert.NoError(t, err)
}
