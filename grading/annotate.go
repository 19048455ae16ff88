package grading

import (
	"context"
	"strings"

	"github.com/jonwraymond/invokeops/batch"
	"github.com/jonwraymond/invokeops/model"
	"github.com/jonwraymond/invokeops/resilience"
)

// BoundingBox locates one answer cell (or a NAME/ID/CLASS field) on a page.
type BoundingBox struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

const annotationInstruction = `Extract the bounding boxes of every question/answer cell in the table on this exam page.
Label each box with its question number exactly as printed (e.g. "1", "22a", "Q3"), without a trailing period.
Also box the NAME, ID and CLASS fields. Skip cells marked "XXXXXXX" and cells without a label.
Respond with JSON: {"boxes": [{"x", "y", "width", "height", "label"}]}.`

func validateBoxes(boxes []BoundingBox) error {
	for i, b := range boxes {
		if b.X < 0 || b.Y < 0 {
			return resilience.Validation("box %d has negative origin (%d, %d)", i, b.X, b.Y)
		}
		if b.Width <= 0 || b.Height <= 0 {
			return resilience.Validation("box %d has empty size %dx%d", i, b.Width, b.Height)
		}
		if strings.TrimSpace(b.Label) == "" {
			return resilience.Validation("box %d has no label", i)
		}
	}
	return nil
}

// ExtractAnnotations finds the answer cells on an exam page. The fallback
// is an empty list, so one unreadable page never fails a batch.
func (s *Service) ExtractAnnotations(ctx context.Context, page model.Image) resilience.Result[[]BoundingBox] {
	req := s.request(NamespaceAnnotations, map[string]any{
		"image_hash": page.Digest(),
	})

	return resilience.Execute(ctx, s.exec, resilience.Invocation[[]BoundingBox]{
		Name: "annotations",
		Operation: func(ctx context.Context, _ *resilience.Session, _ resilience.Request) ([]BoundingBox, error) {
			w, err := generateJSON[struct {
				Boxes []BoundingBox `json:"boxes"`
			}](ctx, s.client, s.prompt(model.Prompt{
				System:    annotationInstruction,
				Text:      "Extract bounding boxes from this image.",
				Images:    []model.Image{page},
				JSON:      true,
				TopP:      0.5,
				MaxTokens: 16384,
			}))
			return w.Boxes, err
		},
		Validate: validateBoxes,
		Sanitize: func(boxes []BoundingBox) []BoundingBox {
			for i := range boxes {
				boxes[i].Label = strings.TrimSuffix(strings.TrimSpace(boxes[i].Label), ".")
			}
			return boxes
		},
		Fallback: func(resilience.Request) []BoundingBox { return []BoundingBox{} },
	}, req)
}

// AnnotateFile is ExtractAnnotations for a page on disk.
func (s *Service) AnnotateFile(ctx context.Context, path string) resilience.Result[[]BoundingBox] {
	page, err := model.LoadImage(path)
	if err != nil {
		return resilience.Degraded([]BoundingBox{}, err.Error(), err)
	}
	return s.ExtractAnnotations(ctx, page)
}

// AnnotateAll annotates pages concurrently; results are in input order.
func (s *Service) AnnotateAll(ctx context.Context, paths []string) []resilience.Result[[]BoundingBox] {
	return batch.Map(ctx, paths, s.batchLimit, func(ctx context.Context, _ int, path string) resilience.Result[[]BoundingBox] {
		return s.AnnotateFile(ctx, path)
	})
}
