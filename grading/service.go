// Package grading implements the exam-grading calls of the marking
// pipeline on top of the resilient executor.
//
// Every call returns a resilience.Result: a validated (and possibly cached)
// value, or the call's fixed fallback when the model could not produce one.
package grading

import (
	"context"

	"github.com/jonwraymond/invokeops/cache"
	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// Cache namespaces, one per call site.
const (
	NamespaceGradeAnswer    = "grade_answer"
	NamespaceGradeAnswerOCR = "grade_answer_ocr"
	NamespaceOCR            = "ocr"
	NamespaceModerate       = "moderate"
	NamespaceAnnotations    = "annotations"
	NamespaceMarkingScheme  = "marking_scheme"
	NamespaceStudentReport  = "student_report"
	NamespaceClassOverview  = "class_overview"
)

// DefaultBatchLimit bounds concurrent calls in the *All helpers.
const DefaultBatchLimit = 4

// Service runs grading calls through one executor and model client.
type Service struct {
	exec       *resilience.Executor
	client     model.Client
	model      string
	batchLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithModel sets the model name. It is sent with every prompt and is part
// of every cache key, so switching models never serves stale results.
func WithModel(name string) Option {
	return func(s *Service) {
		s.model = name
	}
}

// WithBatchLimit bounds concurrency of GradeAll and AnnotateAll.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// NewService creates a grading service.
func NewService(exec *resilience.Executor, client model.Client, opts ...Option) *Service {
	s := &Service{
		exec:       exec,
		client:     client,
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) request(namespace string, params map[string]any) resilience.Request {
	params["model"] = s.model
	return resilience.Request{Request: cache.Request{
		Namespace:  namespace,
		Parameters: params,
	}}
}

// prompt fills in the service model.
func (s *Service) prompt(p model.Prompt) model.Prompt {
	p.Model = s.model
	return p
}

// generateJSON performs one call and decodes its JSON answer into W.
func generateJSON[W any](ctx context.Context, c model.Client, p model.Prompt) (W, error) {
	raw, err := c.Generate(ctx, p)
	if err != nil {
		var zero W
		return zero, err
	}
	return model.DecodeJSON[W](raw)
}
