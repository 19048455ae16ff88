// Package model defines the contract for remote generative-model calls and
// an OpenAI-compatible implementation.
//
// A Client performs exactly one remote call per Generate. Retrying,
// validation and caching belong to the resilience package.
package model

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"

	"github.com/jonwraymond/invokeops/cache"
)

// Errors returned by this package.
var (
	// ErrMissingModel is returned when neither the Prompt nor the Config names a model.
	ErrMissingModel = errors.New("model: model name is required")

	// ErrMalformed is returned when a response cannot be decoded into the
	// expected structure. It is transient: a retry may produce valid output.
	ErrMalformed = errors.New("model: malformed response")
)

// DefaultImageMIME is used for images without an explicit type.
const DefaultImageMIME = "image/jpeg"

// Image is inline binary input for a multimodal prompt.
type Image struct {
	MIME string
	Data []byte
}

// DataURL returns the image as a base64 data URL.
func (i Image) DataURL() string {
	mime := i.MIME
	if mime == "" {
		mime = DefaultImageMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Digest returns the content digest used in cache keys in place of the bytes.
func (i Image) Digest() string {
	return cache.ContentDigest(i.Data)
}

// LoadImage reads an image file and sniffs its MIME type.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return Image{MIME: http.DetectContentType(data), Data: data}, nil
}

// Prompt is one model request.
type Prompt struct {
	// Model overrides the client's default model.
	Model string
	// System is an optional instruction message.
	System string
	// Text is the user message.
	Text string
	// Images are sent before Text in the user message.
	Images []Image
	// JSON requests a JSON object response.
	JSON bool

	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Client performs one remote generative-model call.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: an empty response is resilience.ErrEmptyResult; failures no
//     retry can fix are wrapped with resilience.Terminal.
type Client interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, p Prompt) (string, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}
