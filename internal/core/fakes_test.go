package core

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
)

type fakeIterator struct {
	chunks []*genai.GenerateContentResponse
	err    error
	pos    int
}

func (f *fakeIterator) Next() (*genai.GenerateContentResponse, error) {
	if f.pos < len(f.chunks) {
		c := f.chunks[f.pos]
		f.pos++
		return c, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, iterator.Done
}

// fakeStreamer replays chunks and then ends with err, or iterator.Done when err is nil.
type fakeStreamer struct {
	chunks []*genai.GenerateContentResponse
	err    error

	calls int
	ctx   context.Context
	parts []genai.Part
}

func (f *fakeStreamer) GenerateContentStream(ctx context.Context, parts ...genai.Part) ResponseIterator {
	f.calls++
	f.ctx = ctx
	f.parts = parts
	return &fakeIterator{chunks: f.chunks, err: f.err}
}

func textChunk(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
