// internal/words/words.go
//
// Vocabulary for the duel server.
//
// Responsibilities:
//   - Load answer and allowed guess lists from environment-provided files or
//     fall back to the lists embedded in the assets package.
//   - Maintain a lookup set of accepted guesses (answers ∪ guesses).
//   - Supply IsAllowed and Stats; ForRound (pick.go) picks a round's answer.
//
// Initialization behavior (Init):
//   1. If WORDS_ANSWERS_FILE and WORDS_ALLOWED_FILE are both set,
//      load answers from the first and allowed guesses from the second.
//   2. If only WORDS_ALLOWED_FILE is set,
//      load that file and use it for both answers and allowed guesses.
//   3. If neither is set, use the embedded assets lists.
//
// Constraints:
//   • Words must be 5 alphabetic letters (a–z).
//   • Lists are normalized to lowercase.
//   • Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/wordle/apps/duel-server/assets"
)

// Length is the number of letters in every playable word.
const Length = 5

var (
	initOnce   sync.Once
	mu         sync.RWMutex
	answers    []string            // canonical answers
	allowedSet map[string]struct{} // answers ∪ guesses
	initialErr error
)

// Init loads word lists exactly once.
// Returns an error if the answers list ends up empty.
func Init() error {
	return InitFiles(os.Getenv("WORDS_ANSWERS_FILE"), os.Getenv("WORDS_ALLOWED_FILE"))
}

// InitFiles is Init with explicit paths; empty paths fall back as above.
func InitFiles(answersPath, allowedPath string) error {
	initOnce.Do(func() {
		initialErr = load(answersPath, allowedPath)
	})
	return initialErr
}

func load(answersPath, allowedPath string) error {
	var ansList, allowList []string
	var err error

	switch {
	// Case 1: both lists provided
	case answersPath != "" && allowedPath != "":
		if ansList, err = readWordFile(answersPath); err != nil {
			return err
		}
		if allowList, err = readWordFile(allowedPath); err != nil {
			return err
		}

	// Case 2: only allowed file provided → use for both
	case answersPath == "" && allowedPath != "":
		if allowList, err = readWordFile(allowedPath); err != nil {
			return err
		}
		ansList = allowList

	// Case 3: embedded defaults
	default:
		if ansList, err = assets.AnswersList(); err != nil {
			return err
		}
		if allowList, err = assets.AllowedList(); err != nil {
			return err
		}
		ansList = keepPlayable(ansList)
		allowList = keepPlayable(allowList)
	}

	Set(ansList, allowList)
	if len(ansList) == 0 {
		return errors.New("words: answers list is empty")
	}
	return nil
}

// Set replaces the loaded lists. Answers are always accepted as guesses.
// Tests use it to pin a small vocabulary.
func Set(ansList, allowList []string) {
	al := toSet(ansList)
	for _, w := range allowList {
		al[w] = struct{}{}
	}

	mu.Lock()
	answers = append([]string(nil), ansList...)
	allowedSet = al
	mu.Unlock()
}

// readWordFile loads one word per line from a file,
// lowercases, trims, and keeps only valid 5-letter alphabetic words.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(strings.ToLower(sc.Text()))
		if len(w) == Length && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

// keepPlayable drops anything that is not a 5-letter a–z word.
func keepPlayable(list []string) []string {
	out := list[:0]
	for _, w := range list {
		if len(w) == Length && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out
}

// toSet converts a list of strings into a lookup set.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsAllowed reports whether w is a valid guess (answers ∪ guesses).
func IsAllowed(w string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := allowedSet[strings.ToLower(w)]
	return ok
}

// Stats returns counts of loaded words: (answers, allowed).
func Stats() (answersCount int, allowedCount int) {
	mu.RLock()
	defer mu.RUnlock()
	return len(answers), len(allowedSet)
}
