package critique

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kalambet/mavkus/internal/profile"
)

// Score bounds.
const (
	MinScore = 1
	MaxScore = 10
)

// Parse errors.
var (
	ErrEmpty          = errors.New("empty critique payload")
	ErrInvalidJSON    = errors.New("critique payload is not valid JSON")
	ErrMissingOverall = errors.New("critique payload has no numeric overall_score")
)

// Scores keeps criterion scores in the order the critic reported them.
// It encodes as a JSON object.
type Scores []profile.AreaScore

func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Area)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(a.Score, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Scores) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("scores: expected object, got %s", res.Type)
	}
	*s = parseScores(res)
	return nil
}

// Get returns the score for area.
func (s Scores) Get(area string) (float64, bool) {
	for _, a := range s {
		if a.Area == area {
			return a.Score, true
		}
	}
	return 0, false
}

// StripFences removes a surrounding ```json or ``` code fence, keeping only
// the fenced body. Text without fences is returned trimmed.
func StripFences(raw string) string {
	content := strings.TrimSpace(raw)
	for _, marker := range []string{"```json", "```"} {
		_, after, found := strings.Cut(content, marker)
		if !found {
			continue
		}
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return content
}

// Parse extracts a Critique from critic output. overall_score must be a
// number in [MinScore, MaxScore]. Criterion scores that are not numeric are
// dropped and the rest are clamped to the same range.
func Parse(raw string) (Critique, error) {
	body := StripFences(raw)
	if body == "" {
		return Critique{}, ErrEmpty
	}
	if !gjson.Valid(body) {
		return Critique{}, ErrInvalidJSON
	}

	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return Critique{}, ErrInvalidJSON
	}

	overall, ok := number(doc.Get("overall_score"))
	if !ok {
		return Critique{}, ErrMissingOverall
	}
	if overall < MinScore || overall > MaxScore {
		return Critique{}, fmt.Errorf("overall_score %.2f out of range [%d, %d]", overall, MinScore, MaxScore)
	}

	return Critique{
		Scores:                parseScores(doc.Get("scores")),
		OverallScore:          overall,
		Strengths:             stringList(doc.Get("strengths")),
		Weaknesses:            stringList(doc.Get("weaknesses")),
		ImprovementSuggestion: doc.Get("improvement_suggestion").String(),
		Category:              doc.Get("category").String(),
	}, nil
}

func parseScores(res gjson.Result) Scores {
	scores := Scores{}
	if !res.IsObject() {
		return scores
	}
	res.ForEach(func(key, value gjson.Result) bool {
		v, ok := number(value)
		if !ok {
			return true
		}
		scores = append(scores, profile.AreaScore{Area: key.String(), Score: clamp(v)})
		return true
	})
	return scores
}

// number accepts JSON numbers and numeric strings.
func number(res gjson.Result) (float64, bool) {
	switch res.Type {
	case gjson.Number:
		return res.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringList(res gjson.Result) []string {
	out := []string{}
	if res.Type == gjson.String && res.Str != "" {
		return append(out, res.Str)
	}
	for _, v := range res.Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	default:
		return v
	}
}
