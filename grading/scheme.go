package grading

import (
	"context"
	"strings"

	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// MaxQuestionMarks is the largest mark allocation accepted for one question.
const MaxQuestionMarks = 100

// SchemeQuestion is one question of a marking scheme.
type SchemeQuestion struct {
	Number        string `json:"question_number"`
	Text          string `json:"question_text"`
	MarkingScheme string `json:"marking_scheme"`
	Marks         int    `json:"marks"`
}

// MarkingScheme is the structured form of a marking-scheme document.
type MarkingScheme struct {
	GeneralGuide string           `json:"general_grading_guide"`
	Questions    []SchemeQuestion `json:"questions"`
}

const schemeInstruction = `Analyze this marking scheme document and extract structured data as JSON:
{"general_grading_guide": string, "questions": [{"question_number", "question_text", "marking_scheme", "marks"}]}.
Format each marking_scheme in markdown with one criterion per line and its point allocation.
marks is a positive integer per question.`

func validateScheme(ms MarkingScheme) error {
	if len(ms.Questions) == 0 {
		return resilience.Validation("no questions extracted")
	}
	for i, q := range ms.Questions {
		if strings.TrimSpace(q.Number) == "" {
			return resilience.Validation("question %d has no number", i)
		}
		if strings.TrimSpace(q.MarkingScheme) == "" {
			return resilience.Validation("question %s has an empty marking scheme", q.Number)
		}
		if err := resilience.ExpectRange("question "+q.Number+" marks", q.Marks, 1, MaxQuestionMarks); err != nil {
			return err
		}
	}
	return nil
}

// ExtractMarkingScheme structures a marking-scheme document (markdown or
// plain text). The fallback is an empty scheme.
func (s *Service) ExtractMarkingScheme(ctx context.Context, document string) resilience.Result[MarkingScheme] {
	req := s.request(NamespaceMarkingScheme, map[string]any{
		"document": document,
	})

	return resilience.Execute(ctx, s.exec, resilience.Invocation[MarkingScheme]{
		Name: "marking_scheme",
		Operation: func(ctx context.Context, _ *resilience.Session, _ resilience.Request) (MarkingScheme, error) {
			return generateJSON[MarkingScheme](ctx, s.client, s.prompt(model.Prompt{
				System:      schemeInstruction,
				Text:        "**Document Content:**\n\n" + document,
				JSON:        true,
				Temperature: 0.1,
				TopP:        0.5,
				MaxTokens:   8192,
			}))
		},
		Validate: validateScheme,
		Sanitize: func(ms MarkingScheme) MarkingScheme {
			ms.GeneralGuide = strings.TrimSpace(ms.GeneralGuide)
			for i := range ms.Questions {
				q := &ms.Questions[i]
				q.Number = strings.TrimSpace(q.Number)
				q.Text = strings.TrimSpace(q.Text)
				q.MarkingScheme = strings.TrimSpace(q.MarkingScheme)
			}
			return ms
		},
		Fallback: func(resilience.Request) MarkingScheme {
			return MarkingScheme{Questions: []SchemeQuestion{}}
		},
	}, req)
}
