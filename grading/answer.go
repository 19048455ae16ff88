package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/invokeops/batch"
	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// GradeResult is the verdict on one answer.
type GradeResult struct {
	ExtractedText   string  `json:"extracted_text"`
	SimilarityScore float64 `json:"similarity_score"`
	Mark            float64 `json:"mark"`
	Reasoning       string  `json:"reasoning"`
}

// gradeWire detects fields the model left out.
type gradeWire struct {
	ExtractedText   *string  `json:"extracted_text"`
	SimilarityScore *float64 `json:"similarity_score"`
	Mark            *float64 `json:"mark"`
	Reasoning       *string  `json:"reasoning"`
}

func (w gradeWire) result() (GradeResult, error) {
	switch {
	case w.SimilarityScore == nil:
		return GradeResult{}, resilience.Validation("similarity_score missing")
	case w.Mark == nil:
		return GradeResult{}, resilience.Validation("mark missing")
	case w.Reasoning == nil:
		return GradeResult{}, resilience.Validation("reasoning missing")
	}
	r := GradeResult{
		SimilarityScore: *w.SimilarityScore,
		Mark:            *w.Mark,
		Reasoning:       *w.Reasoning,
	}
	if w.ExtractedText != nil {
		r.ExtractedText = *w.ExtractedText
	}
	return r, nil
}

// Answer is a typed answer to grade.
type Answer struct {
	Question   string
	Scheme     string
	TotalMarks float64
	Text       string
}

// ImageAnswer is a handwritten answer to read and grade.
type ImageAnswer struct {
	Question   string
	Scheme     string
	TotalMarks float64
	Image      model.Image
}

const graderInstruction = "You are an expert grader. Evaluate the student's answer against the question, " +
	"marking scheme and total marks. Respond with a JSON object with keys " +
	"extracted_text, reasoning, similarity_score (0 to 1) and mark."

func gradingPrompt(question, scheme string, total float64, answer string) string {
	return fmt.Sprintf(`<QUESTION>
%s
</QUESTION>

<MARKING_SCHEME>
%s
</MARKING_SCHEME>

<TOTAL_MARKS>
%g
</TOTAL_MARKS>

<STUDENT_ANSWER>
%s
</STUDENT_ANSWER>

Provide extracted_text, reasoning, similarity_score (0 to 1) and mark (0 to %g).`,
		question, scheme, total, answer, total)
}

// gradeInvocation is shared by the text and image variants.
func gradeInvocation(name string, total float64, op resilience.Operation[GradeResult], fallback GradeResult) resilience.Invocation[GradeResult] {
	return resilience.Invocation[GradeResult]{
		Name:      name,
		Operation: op,
		Validate: func(g GradeResult) error {
			return resilience.ExpectNonEmpty("reasoning", strings.TrimSpace(g.Reasoning))
		},
		Sanitize: func(g GradeResult) GradeResult {
			g.SimilarityScore = resilience.Clamp(g.SimilarityScore, 0, 1)
			g.Mark = resilience.Clamp(g.Mark, 0, total)
			return g
		},
		Fallback: func(resilience.Request) GradeResult { return fallback },
	}
}

func (s *Service) gradingCall(ctx context.Context, question, scheme string, total float64, answer string) (GradeResult, error) {
	w, err := generateJSON[gradeWire](ctx, s.client, s.prompt(model.Prompt{
		System:    graderInstruction,
		Text:      gradingPrompt(question, scheme, total, answer),
		JSON:      true,
		TopP:      0.3,
		MaxTokens: 8192,
	}))
	if err != nil {
		return GradeResult{}, err
	}
	return w.result()
}

// GradeAnswer grades a typed answer. Marks are clamped into [0, TotalMarks]
// and similarity into [0, 1].
func (s *Service) GradeAnswer(ctx context.Context, in Answer) resilience.Result[GradeResult] {
	req := s.request(NamespaceGradeAnswer, map[string]any{
		"question": in.Question,
		"answer":   in.Text,
		"scheme":   in.Scheme,
		"marks":    in.TotalMarks,
	})

	inv := gradeInvocation("grade", in.TotalMarks,
		func(ctx context.Context, _ *resilience.Session, _ resilience.Request) (GradeResult, error) {
			g, err := s.gradingCall(ctx, in.Question, in.Scheme, in.TotalMarks, in.Text)
			if err == nil && g.ExtractedText == "" {
				g.ExtractedText = in.Text
			}
			return g, err
		},
		GradeResult{ExtractedText: in.Text, Reasoning: "Error: grading failed"},
	)
	return resilience.Execute(ctx, s.exec, inv, req)
}

// GradeAnswerImage reads a handwritten answer and grades the transcription.
// Both model calls happen inside one attempt; a failure in either retries
// the pair. The image is keyed by content digest, never by its bytes.
func (s *Service) GradeAnswerImage(ctx context.Context, in ImageAnswer) resilience.Result[GradeResult] {
	req := s.request(NamespaceGradeAnswerOCR, map[string]any{
		"question":   in.Question,
		"scheme":     in.Scheme,
		"marks":      in.TotalMarks,
		"image_hash": in.Image.Digest(),
	})

	inv := gradeInvocation("grade_image", in.TotalMarks,
		func(ctx context.Context, _ *resilience.Session, _ resilience.Request) (GradeResult, error) {
			text, err := s.ocrCall(ctx, handwritingPrompt, in.Image)
			if err != nil {
				return GradeResult{}, err
			}
			g, err := s.gradingCall(ctx, in.Question, in.Scheme, in.TotalMarks, text)
			if err != nil {
				return GradeResult{}, err
			}
			g.ExtractedText = text
			return g, nil
		},
		GradeResult{Reasoning: "Error: OCR+grading failed"},
	)
	return resilience.Execute(ctx, s.exec, inv, req)
}

// GradeAll grades answers concurrently; results are in input order.
func (s *Service) GradeAll(ctx context.Context, answers []Answer) []resilience.Result[GradeResult] {
	return batch.Map(ctx, answers, s.batchLimit, func(ctx context.Context, _ int, a Answer) resilience.Result[GradeResult] {
		return s.GradeAnswer(ctx, a)
	})
}
