package grading

import (
	"context"
	"strings"

	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

const (
	ocrInstruction    = "You are an expert OCR assistant. Extract text from images exactly as requested."
	handwritingPrompt = "Extract the handwritten text from the provided image. Return only the text."
)

func (s *Service) ocrCall(ctx context.Context, prompt string, img model.Image) (string, error) {
	raw, err := s.client.Generate(ctx, s.prompt(model.Prompt{
		System:    ocrInstruction,
		Text:      prompt,
		Images:    []model.Image{img},
		TopP:      0.5,
		MaxTokens: 4096,
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// ExtractText transcribes img following prompt. The fallback is "".
func (s *Service) ExtractText(ctx context.Context, prompt string, img model.Image) resilience.Result[string] {
	req := s.request(NamespaceOCR, map[string]any{
		"prompt":     prompt,
		"image_hash": img.Digest(),
	})

	return resilience.Execute(ctx, s.exec, resilience.Invocation[string]{
		Name: "ocr",
		Operation: func(ctx context.Context, _ *resilience.Session, _ resilience.Request) (string, error) {
			return s.ocrCall(ctx, prompt, img)
		},
		Validate: func(text string) error {
			return resilience.ExpectNonEmpty("text", text)
		},
		Sanitize: strings.TrimSpace,
		Fallback: func(resilience.Request) string { return "" },
	}, req)
}

// ExtractTextFile is ExtractText for an image on disk. An unreadable file
// degrades to "" without calling the model.
func (s *Service) ExtractTextFile(ctx context.Context, prompt, path string) resilience.Result[string] {
	img, err := model.LoadImage(path)
	if err != nil {
		return resilience.Degraded("", err.Error(), err)
	}
	return s.ExtractText(ctx, prompt, img)
}
