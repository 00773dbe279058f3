package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

func TestShuffleKeepsOptionTexts(t *testing.T) {
	shuffler := NewOptionShufflerWithSeed(3)
	q := makeQuestion(2, 0)

	shuffled, err := shuffler.Shuffle(q)
	require.NoError(t, err)
	require.Len(t, shuffled.Options, 4)

	want := map[string]int{}
	for _, opt := range q.Options {
		want[opt.Text]++
	}
	got := map[string]int{}
	for _, opt := range shuffled.Options {
		got[opt.Text]++
	}
	assert.Equal(t, want, got, "shuffle must be a permutation of the same texts")
}

func TestShufflePreservesCorrectAnswer(t *testing.T) {
	// Run across many seeds so every permutation shape shows up.
	for seed := int64(0); seed < 50; seed++ {
		shuffler := NewOptionShufflerWithSeed(seed)
		q := makeQuestion(4, 0)
		q.CorrectLabel = "C"

		shuffled, err := shuffler.Shuffle(q)
		require.NoError(t, err)

		assert.Equal(t, entities.LabelC, shuffled.OriginalCorrect)

		correctOption, ok := shuffled.OptionByLabel(shuffled.Correct)
		require.True(t, ok)
		assert.Equal(t, entities.LabelC, correctOption.OriginalLabel)
		assert.Equal(t, "third", correctOption.Text)

		// Exactly one shown option maps back to the original key.
		matches := 0
		for _, opt := range shuffled.Options {
			if opt.OriginalLabel == entities.LabelC {
				matches++
			}
		}
		assert.Equal(t, 1, matches)

		// Labels are reassigned positionally.
		for i, opt := range shuffled.Options {
			assert.Equal(t, entities.Labels()[i], opt.Label)
		}
	}
}

func TestShuffleScoringEquivalence(t *testing.T) {
	shuffler := NewOptionShufflerWithSeed(17)
	q := makeQuestion(7, 0)
	q.CorrectLabel = "ב" // hebrew bet, canonical B

	shuffled, err := shuffler.Shuffle(q)
	require.NoError(t, err)

	// A submission equal to the shuffled correct label scores correct
	// once translated into the storage frame.
	opt, ok := shuffled.OptionByLabel(shuffled.Correct)
	require.True(t, ok)

	resolved, err := ResolveCorrectLabel(q)
	require.NoError(t, err)
	assert.Equal(t, resolved, opt.OriginalLabel)
}

func TestShuffleRejectsMissingAnswerKey(t *testing.T) {
	shuffler := NewOptionShufflerWithSeed(1)
	q := makeQuestion(1, 0)
	q.CorrectLabel = ""

	_, err := shuffler.Shuffle(q)
	assert.ErrorIs(t, err, ErrNoAnswerKey)
}
