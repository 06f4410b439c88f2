package llm

import (
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"NewsHarvester/internal/domain"
)

const maxScore = 10

var (
	outOfTenRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:/|із|з|out\s+of|of)\s*10\b`)
	labelledRe  = regexp.MustCompile(`(?i)(?:оцінк|актуальн|релевантн|score|relevance|rating)\p{L}*\s*[:=-]?\s*(\d+)`)
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// rangeWords introduce scale bounds ("від 1 до 10", "з 10"), never a score.
var rangeWords = map[string]bool{
	"від": true, "до": true, "з": true, "із": true, "зі": true,
	"from": true, "to": true, "of": true,
}

// ParseVerdict turns a judge reply into a Judgment. It accepts a JSON object
// {"relevant": bool, "score": int} or free text that starts with a verdict
// word (Так/Ні/Yes/No). The score is read from "N/10" or "N з 10", then from a
// number labelled Оцінка/Актуальність, then from the single 0..10 integer
// after the verdict word that is not a scale bound. A missing score is
// allowed only for a negative verdict. Everything else, including several
// unlabelled candidates, is a *domain.JudgeError.
func ParseVerdict(reply string) (domain.Judgment, error) {
	text := strings.TrimSpace(reply)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if text == "" {
		return domain.Judgment{}, &domain.JudgeError{Reason: "empty reply"}
	}

	if strings.HasPrefix(text, "{") {
		return parseJSONVerdict(text)
	}

	relevant, ok := verdictWord(text)
	if !ok {
		return domain.Judgment{}, &domain.JudgeError{Reason: "no verdict word in " + quote(text)}
	}

	score, found, err := scoreOf(text)
	if err != nil {
		return domain.Judgment{}, err
	}
	if !found {
		if relevant {
			return domain.Judgment{}, &domain.JudgeError{Reason: "no score in " + quote(text)}
		}
		score = 0
	}
	return domain.Judgment{Relevant: relevant, Score: score}, nil
}

func parseJSONVerdict(text string) (domain.Judgment, error) {
	var payload struct {
		Relevant *bool `json:"relevant"`
		Score    *int  `json:"score"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "malformed json verdict", Err: err}
	}
	if payload.Relevant == nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "json verdict without relevant"}
	}
	score := 0
	if payload.Score != nil {
		score = *payload.Score
	} else if *payload.Relevant {
		return domain.Judgment{}, &domain.JudgeError{Reason: "json verdict without score"}
	}
	if err := CheckScore(score); err != nil {
		return domain.Judgment{}, err
	}
	return domain.Judgment{Relevant: *payload.Relevant, Score: score}, nil
}

// verdictWord reads the first word, ignoring markdown emphasis and punctuation.
func verdictWord(text string) (bool, bool) {
	first := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(first) == 0 {
		return false, false
	}
	switch strings.ToLower(first[0]) {
	case "так", "yes":
		return true, true
	case "ні", "no":
		return false, true
	}
	return false, false
}

func scoreOf(text string) (int, bool, error) {
	for _, re := range []*regexp.Regexp{outOfTenRe, labelledRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			score, err := atoiScore(m[1])
			return score, err == nil, err
		}
	}

	var candidates []int
	tokens := wordTokens(text)
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if !isDigits(tok) || rangeWords[strings.ToLower(tokens[i-1])] {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 || n > maxScore {
			continue
		}
		if !slices.Contains(candidates, n) {
			candidates = append(candidates, n)
		}
	}
	switch len(candidates) {
	case 0:
		return 0, false, nil
	case 1:
		return candidates[0], true, nil
	default:
		return 0, false, &domain.JudgeError{Reason: "ambiguous score in " + quote(text)}
	}
}

func atoiScore(raw string) (int, error) {
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.JudgeError{Reason: "bad score " + quote(raw), Err: err}
	}
	if err := CheckScore(score); err != nil {
		return 0, err
	}
	return score, nil
}

// wordTokens splits text into maximal letter runs and digit runs.
func wordTokens(text string) []string {
	var (
		tokens []string
		cur    []rune
		digits bool
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			if !digits {
				flush()
			}
			digits = true
			cur = append(cur, r)
		case unicode.IsLetter(r):
			if digits {
				flush()
			}
			digits = false
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// CheckScore rejects scores outside 0..10.
func CheckScore(score int) error {
	if score < 0 || score > maxScore {
		return &domain.JudgeError{Reason: "score " + strconv.Itoa(score) + " out of range 0..10"}
	}
	return nil
}

func quote(s string) string {
	const limit = 80
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit]) + "..."
	}
	return strconv.Quote(s)
}
