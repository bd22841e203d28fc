package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vocab = map[string]bool{
	"crane": true, "crate": true, "slate": true, "tiger": true, "adieu": true,
	"pilot": true, "music": true, "house": true, "lemon": true, "brick": true,
}

func allowed(w string) bool { return vocab[w] }

func TestCalculateColors(t *testing.T) {
	cases := []struct {
		guess, target string
		want          []Mark
	}{
		{"crate", "crane", []Mark{MarkCorrect, MarkCorrect, MarkCorrect, MarkAbsent, MarkCorrect}},
		{"crane", "crane", []Mark{MarkCorrect, MarkCorrect, MarkCorrect, MarkCorrect, MarkCorrect}},
		{"react", "crane", []Mark{MarkPresent, MarkPresent, MarkCorrect, MarkPresent, MarkAbsent}},
		// repeated letters are not budgeted against the target
		{"eerie", "crane", []Mark{MarkPresent, MarkPresent, MarkPresent, MarkAbsent, MarkCorrect}},
		{"CRATE", "crane", []Mark{MarkCorrect, MarkCorrect, MarkCorrect, MarkAbsent, MarkCorrect}},
	}
	for _, tc := range cases {
		t.Run(tc.guess, func(t *testing.T) {
			assert.Equal(t, tc.want, CalculateColors(tc.guess, tc.target))
		})
	}
}

func TestCalculateColorsProperties(t *testing.T) {
	targets := []string{"crane", "slate", "tiger", "lemon"}
	guesses := []string{"crate", "adieu", "pilot", "music", "house", "brick", "eerie"}
	for _, target := range targets {
		for _, guess := range guesses {
			marks := CalculateColors(guess, target)
			require.Len(t, marks, WordLength)
			for i, m := range marks {
				switch {
				case guess[i] == target[i]:
					assert.Equal(t, MarkCorrect, m, "%s/%s[%d]", guess, target, i)
				case containsByte(target, guess[i]):
					assert.Equal(t, MarkPresent, m, "%s/%s[%d]", guess, target, i)
				default:
					assert.Equal(t, MarkAbsent, m, "%s/%s[%d]", guess, target, i)
				}
			}
		}
	}
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

func TestColorsRoundTrip(t *testing.T) {
	m := []Mark{MarkCorrect, MarkPresent, MarkAbsent, MarkAbsent, MarkCorrect}
	s := EncodeColors(m)
	assert.Equal(t, "correct,present,absent,absent,correct", s)
	assert.Equal(t, m, DecodeColors(s))
	assert.Nil(t, DecodeColors(""))
	assert.Equal(t, []Mark{MarkAbsent}, DecodeColors("bogus"))
}

func TestKeyboardOnlyUpgrades(t *testing.T) {
	k := Keyboard{}
	k.Apply("crate", []Mark{MarkAbsent, MarkAbsent, MarkPresent, MarkAbsent, MarkAbsent})
	assert.Equal(t, MarkPresent, k["A"])
	assert.Equal(t, MarkAbsent, k["C"])

	k.Apply("crane", []Mark{MarkCorrect, MarkAbsent, MarkCorrect, MarkAbsent, MarkAbsent})
	assert.Equal(t, MarkCorrect, k["C"])
	assert.Equal(t, MarkCorrect, k["A"])

	// a later weaker mark never downgrades
	k.Apply("adieu", []Mark{MarkAbsent, MarkAbsent, MarkAbsent, MarkPresent, MarkAbsent})
	assert.Equal(t, MarkCorrect, k["A"])
	assert.Equal(t, MarkPresent, k["E"])
	k.Apply("eerie", []Mark{MarkAbsent, MarkAbsent, MarkAbsent, MarkAbsent, MarkAbsent})
	assert.Equal(t, MarkPresent, k["E"])
}

func TestTrackerWinScenario(t *testing.T) {
	tr := NewTracker("crane", allowed)
	now := time.UnixMilli(1_700_000_000_000)

	g, err := tr.Submit("CRATE", now)
	require.NoError(t, err)
	assert.Equal(t, []Mark{MarkCorrect, MarkCorrect, MarkCorrect, MarkAbsent, MarkCorrect}, g.Marks)
	assert.Equal(t, OutcomePlaying, g.Outcome)
	assert.False(t, g.Finished)

	g, err = tr.Submit("crane", now)
	require.NoError(t, err)
	assert.True(t, AllCorrect(g.Marks))
	assert.Equal(t, OutcomeWon, g.Outcome)
	assert.True(t, g.Finished)
	assert.Equal(t, now, tr.FinishedAt())

	_, err = tr.Submit("slate", now)
	assert.ErrorIs(t, err, ErrRoundOver)
	assert.Equal(t, 2, tr.Attempts())
}

func TestTrackerLosesAfterSixMisses(t *testing.T) {
	tr := NewTracker("crane", allowed)
	misses := []string{"slate", "tiger", "pilot", "music", "house", "lemon"}
	now := time.Now()
	for i, w := range misses {
		g, err := tr.Submit(w, now)
		require.NoError(t, err)
		if i < len(misses)-1 {
			assert.Equal(t, OutcomePlaying, g.Outcome)
		} else {
			assert.Equal(t, OutcomeLost, g.Outcome)
			assert.True(t, g.Finished)
		}
	}
	_, err := tr.Submit("brick", now)
	assert.ErrorIs(t, err, ErrRoundOver)
	assert.Len(t, tr.Guesses(), MaxAttempts)
}

func TestTrackerRejectsInvalidWords(t *testing.T) {
	tr := NewTracker("crane", allowed)
	_, err := tr.Submit("ABXYZ", time.Now())
	assert.ErrorIs(t, err, ErrNotInWordList)
	_, err = tr.Submit("cran", time.Now())
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = tr.Submit("cr4ne", time.Now())
	assert.ErrorIs(t, err, ErrInvalidLength)
	assert.Empty(t, tr.Guesses())
	assert.Empty(t, tr.Keyboard())
	assert.Equal(t, OutcomePlaying, tr.Outcome())
}

func TestTrackerPress(t *testing.T) {
	tr := NewTracker("crane", allowed)
	now := time.Now()

	for _, k := range []string{"c", "r", "a", "t", "e", "x"} {
		g, err := tr.Press(k, now)
		require.NoError(t, err)
		assert.Nil(t, g)
	}
	assert.Equal(t, "CRATE", tr.Current(), "row is capped at five letters")

	_, _ = tr.Press("Backspace", now)
	assert.Equal(t, "CRAT", tr.Current())
	_, err := tr.Press("Enter", now)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, _ = tr.Press("N", now)
	_, _ = tr.Press("Backspace", now)
	_, _ = tr.Press("E", now)
	g, err := tr.Press("Enter", now)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "crate", g.Word)
	assert.Empty(t, tr.Current())

	for _, k := range []string{"A", "B", "X", "Y", "Z"} {
		_, _ = tr.Press(k, now)
	}
	_, err = tr.Press("Enter", now)
	assert.ErrorIs(t, err, ErrNotInWordList)
	assert.Equal(t, "ABXYZ", tr.Current(), "rejected row stays for editing")
}

func TestParseOutcome(t *testing.T) {
	assert.Equal(t, OutcomeWon, ParseOutcome("won"))
	assert.Equal(t, OutcomeLost, ParseOutcome("lost"))
	assert.Equal(t, OutcomePlaying, ParseOutcome(""))
	assert.Equal(t, OutcomePlaying, ParseOutcome("draw"))
	assert.False(t, OutcomePlaying.Finished())
	assert.True(t, OutcomeLost.Finished())
}

func TestSubmitClearsTypedRow(t *testing.T) {
	tr := NewTracker("crane", allowed)
	now := time.Now()
	for _, k := range []string{"s", "l", "a"} {
		_, _ = tr.Press(k, now)
	}
	_, err := tr.Submit("crate", now)
	require.NoError(t, err)
	assert.Empty(t, tr.Current())

	_, _ = tr.Press("t", now)
	_, err = tr.Submit("ABXYZ", now)
	assert.ErrorIs(t, err, ErrNotInWordList)
	assert.Equal(t, "T", tr.Current(), "a rejected word leaves the row alone")
}

func TestResume(t *testing.T) {
	done := time.UnixMilli(1_700_000_000_000)

	t.Run("mid round", func(t *testing.T) {
		tr := Resume("crane", allowed, []string{"slate", "crate"}, OutcomePlaying, done)
		assert.Equal(t, OutcomePlaying, tr.Outcome())
		assert.Equal(t, []string{"slate", "crate"}, tr.Guesses())
		assert.Equal(t, MarkCorrect, tr.Keyboard()["C"])
		assert.True(t, tr.FinishedAt().IsZero())

		g, err := tr.Submit("crane", done)
		require.NoError(t, err)
		assert.Equal(t, 3, g.Attempt)
		assert.Equal(t, OutcomeWon, g.Outcome)

		_, err = Resume("crane", allowed, nil, OutcomePlaying, done).Submit("abxyz", done)
		assert.ErrorIs(t, err, ErrNotInWordList, "vocabulary still applies after resume")
	})

	t.Run("lost stays lost", func(t *testing.T) {
		misses := []string{"slate", "tiger", "pilot", "music", "house", "lemon"}
		tr := Resume("crane", allowed, misses, OutcomeLost, done)
		assert.Equal(t, OutcomeLost, tr.Outcome())
		assert.Equal(t, done, tr.FinishedAt())
		_, err := tr.Submit("crane", done)
		assert.ErrorIs(t, err, ErrRoundOver)
		_, err = tr.Press("c", done)
		assert.ErrorIs(t, err, ErrRoundOver)
	})

	t.Run("stored outcome wins", func(t *testing.T) {
		tr := Resume("crane", allowed, []string{"slate"}, OutcomeLost, done)
		assert.Equal(t, OutcomeLost, tr.Outcome())
		assert.Equal(t, 1, tr.Attempts())
	})

	t.Run("replay finishes the round", func(t *testing.T) {
		tr := Resume("crane", allowed, []string{"slate", "crane"}, OutcomePlaying, done)
		assert.Equal(t, OutcomeWon, tr.Outcome())
		assert.Equal(t, done, tr.FinishedAt())
	})
}
