package game

import "strings"

// Keyboard holds the best mark seen so far for each letter, keyed by the
// upper-case letter as it is displayed.
type Keyboard map[string]Mark

// Apply folds one scored guess into the hints. A letter's mark only ever
// upgrades: absent < present < correct.
func (k Keyboard) Apply(guess string, marks []Mark) {
	guess = strings.ToUpper(guess)
	for i := 0; i < len(guess) && i < len(marks); i++ {
		letter := guess[i : i+1]
		if marks[i].rank() > k[letter].rank() {
			k[letter] = marks[i]
		}
	}
}

// Clone returns an independent copy.
func (k Keyboard) Clone() Keyboard {
	out := make(Keyboard, len(k))
	for l, m := range k {
		out[l] = m
	}
	return out
}
