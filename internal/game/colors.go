package game

import "strings"

// CalculateColors marks each letter of guess against target:
//   - Correct when the letter sits at the same position in target.
//   - Present when the letter appears anywhere else in target.
//   - Absent otherwise.
//
// Repeated letters are not budgeted: every copy of a letter that occurs in
// target is marked at least Present. The result always has len(guess) marks.
func CalculateColors(guess, target string) []Mark {
	guess = strings.ToLower(guess)
	target = strings.ToLower(target)

	res := make([]Mark, len(guess))
	for i := 0; i < len(guess); i++ {
		switch {
		case i < len(target) && guess[i] == target[i]:
			res[i] = MarkCorrect
		case strings.IndexByte(target, guess[i]) >= 0:
			res[i] = MarkPresent
		default:
			res[i] = MarkAbsent
		}
	}
	return res
}

// AllCorrect reports whether every mark is Correct.
func AllCorrect(m []Mark) bool {
	if len(m) == 0 {
		return false
	}
	for _, x := range m {
		if x != MarkCorrect {
			return false
		}
	}
	return true
}

// EncodeColors joins marks with commas. The shared store cannot hold nested
// lists, so each guess's marks travel as one string.
func EncodeColors(m []Mark) string {
	parts := make([]string, len(m))
	for i, x := range m {
		parts[i] = string(x)
	}
	return strings.Join(parts, ",")
}

// DecodeColors is the inverse of EncodeColors. Unknown entries decode as
// Absent so a malformed peer entry still renders.
func DecodeColors(s string) []Mark {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]Mark, len(parts))
	for i, p := range parts {
		switch Mark(p) {
		case MarkCorrect, MarkPresent:
			out[i] = Mark(p)
		default:
			out[i] = MarkAbsent
		}
	}
	return out
}
