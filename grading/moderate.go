package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// MaxNoteLength bounds moderation notes, in runes.
const MaxNoteLength = 120

// ModerationNoteError marks fallback items.
const ModerationNoteError = "moderation_error"

// ModerationEntry is one graded response under review.
type ModerationEntry struct {
	Row    int     `json:"row"`
	Answer string  `json:"answer"`
	Mark   float64 `json:"mark"`
}

// ModerationItem is the moderated verdict for the entry at the same index.
type ModerationItem struct {
	ModeratedMark float64 `json:"moderated_mark"`
	Flag          bool    `json:"flag"`
	Note          string  `json:"note"`
}

// ModerationInput is a batch of responses to one question.
type ModerationInput struct {
	Question   string
	Scheme     string
	TotalMarks float64
	Entries    []ModerationEntry
}

func moderationPrompt(in ModerationInput) (string, error) {
	entries, err := json.Marshal(in.Entries)
	if err != nil {
		return "", err
	}
	n := len(in.Entries)
	return fmt.Sprintf(`Question: %s
Marking scheme: %s
Total marks: %g

Review %d student responses and ensure similar answers receive similar marks.

Return JSON with "items" array of %d objects:
- "moderated_mark": number (0 to %g)
- "flag": boolean (true if adjusted or needs review)
- "note": string (max %d chars, reference peers by row number)

Responses:
%s`, in.Question, in.Scheme, in.TotalMarks, n, n, in.TotalMarks, MaxNoteLength, entries), nil
}

// Moderate reviews marks across responses for consistency. The result has
// exactly one item per entry, or the fallback which echoes the original
// marks with note "moderation_error".
func (s *Service) Moderate(ctx context.Context, in ModerationInput) resilience.Result[[]ModerationItem] {
	if len(in.Entries) == 0 {
		return resilience.Success([]ModerationItem{})
	}

	entries := make([]any, len(in.Entries))
	for i, e := range in.Entries {
		entries[i] = map[string]any{"row": e.Row, "answer": e.Answer, "mark": e.Mark}
	}
	req := s.request(NamespaceModerate, map[string]any{
		"question": in.Question,
		"scheme":   in.Scheme,
		"marks":    in.TotalMarks,
		"entries":  entries,
	})

	return resilience.Execute(ctx, s.exec, resilience.Invocation[[]ModerationItem]{
		Name: "moderate",
		Operation: func(ctx context.Context, _ *resilience.Session, _ resilience.Request) ([]ModerationItem, error) {
			text, err := moderationPrompt(in)
			if err != nil {
				return nil, resilience.Terminal(err)
			}
			w, err := generateJSON[struct {
				Items []ModerationItem `json:"items"`
			}](ctx, s.client, s.prompt(model.Prompt{
				System:    "You are a grading moderator ensuring fairness and consistency.",
				Text:      text,
				JSON:      true,
				TopP:      0.3,
				MaxTokens: 16384,
			}))
			return w.Items, err
		},
		Validate: func(items []ModerationItem) error {
			return resilience.ExpectCount(len(in.Entries), len(items))
		},
		Sanitize: func(items []ModerationItem) []ModerationItem {
			for i := range items {
				items[i].ModeratedMark = resilience.Clamp(items[i].ModeratedMark, 0, in.TotalMarks)
				items[i].Note = truncateRunes(items[i].Note, MaxNoteLength)
			}
			return items
		},
		Fallback: func(resilience.Request) []ModerationItem {
			items := make([]ModerationItem, len(in.Entries))
			for i, e := range in.Entries {
				items[i] = ModerationItem{ModeratedMark: e.Mark, Note: ModerationNoteError}
			}
			return items
		},
	}, req)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
