package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// Fallback report texts.
const (
	StudentReportUnavailable = "Report generation failed."
	ClassOverviewUnavailable = "AI-generated class overview temporarily unavailable due to API issues."
)

// Student identifies the subject of a performance report.
type Student struct {
	ID              string
	Name            string
	Class           string
	TotalScore      float64
	QuestionDetails string
}

const studentReportInstruction = `You are an instructor drafting a concise performance report.
Write a 2-3 sentence overall summary, one short bullet per question with actionable feedback,
and 2 concrete next-step study suggestions. Keep it under 220 words.
Respond with JSON: {"report_text": string}.`

const classOverviewInstruction = `You are summarizing overall class performance from individual reports.
Write a concise overview (<200 words): 4-6 bullets on strengths and weaknesses,
3 next-step actions for instruction and 2 topics to re-teach. Do not name students.
Respond with JSON: {"report_text": string}.`

type reportWire struct {
	ReportText string `json:"report_text"`
}

func (s *Service) report(ctx context.Context, name string, req resilience.Request, instruction, text, fallback string) resilience.Result[string] {
	return resilience.Execute(ctx, s.exec, resilience.Invocation[string]{
		Name: name,
		Operation: func(ctx context.Context, _ *resilience.Session, _ resilience.Request) (string, error) {
			w, err := generateJSON[reportWire](ctx, s.client, s.prompt(model.Prompt{
				System:      instruction,
				Text:        text,
				JSON:        true,
				Temperature: 0.35,
				TopP:        0.9,
				MaxTokens:   1536,
			}))
			return strings.TrimSpace(w.ReportText), err
		},
		Validate: func(text string) error {
			return resilience.ExpectNonEmpty("report_text", text)
		},
		Fallback: func(resilience.Request) string { return fallback },
	}, req)
}

// StudentReport drafts an individual performance report.
func (s *Service) StudentReport(ctx context.Context, st Student) resilience.Result[string] {
	req := s.request(NamespaceStudentReport, map[string]any{
		"student_id":    st.ID,
		"student_name":  st.Name,
		"student_class": st.Class,
		"total_score":   st.TotalScore,
		"details":       st.QuestionDetails,
	})
	text := fmt.Sprintf(`Student: %s - %s (Class: %s)
Total score: %g

Use the question details, marking schemes, awarded marks, and answers below:
%s
`, st.ID, st.Name, st.Class, st.TotalScore, st.QuestionDetails)

	return s.report(ctx, "student_report", req, studentReportInstruction, text, StudentReportUnavailable)
}

// ClassOverview summarizes class performance from key metrics and a sample
// of individual reports.
func (s *Service) ClassOverview(ctx context.Context, summary map[string]any, reports []string) resilience.Result[string] {
	metrics, err := json.Marshal(summary)
	if err != nil {
		return resilience.Degraded(ClassOverviewUnavailable, err.Error(), err)
	}

	sample := make([]any, len(reports))
	for i, r := range reports {
		sample[i] = r
	}
	req := s.request(NamespaceClassOverview, map[string]any{
		"summary": summary,
		"reports": sample,
	})
	text := fmt.Sprintf(`Key metrics (JSON): %s
Number of sampled individual reports: %d
Individual reports (separated by ---):
%s
`, metrics, len(reports), strings.Join(reports, "\n\n---\n\n"))

	return s.report(ctx, "class_overview", req, classOverviewInstruction, text, ClassOverviewUnavailable)
}
