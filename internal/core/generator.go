package core

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"autocloud.com/car-insurance-estimator/internal/apperr"
	"autocloud.com/car-insurance-estimator/internal/metrics"
)

// Generator relays a streamed model reply as a sequence of growing reports.
type Generator struct {
	streamer ContentStreamer
	logger   *zap.SugaredLogger
}

func NewGenerator(streamer ContentStreamer, logger *zap.SugaredLogger) *Generator {
	return &Generator{streamer: streamer, logger: logger}
}

// accumulator is the append-only report buffer of one session.
type accumulator struct {
	buf       strings.Builder
	fragments int
}

func (a *accumulator) add(fragment string) string {
	a.buf.WriteString(fragment)
	a.fragments++
	return a.buf.String()
}

// Generate opens a new streaming session for p. Every yielded value is the
// full report received so far, never just the latest fragment. The sequence
// ends when the model finishes; on failure a single error is yielded and the
// snapshots already delivered stand. Stopping the range early cancels the session.
func (g *Generator) Generate(ctx context.Context, p *Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		it := g.streamer.GenerateContentStream(ctx, p.Parts()...)
		var acc accumulator
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				g.logger.Debugf("Model stream complete after %d fragments (%d bytes).", acc.fragments, acc.buf.Len())
				return
			}
			if err != nil {
				g.logger.Warnf("Model stream failed after %d fragments: %v", acc.fragments, err)
				yield("", apperr.New(apperr.KindUpstreamGeneration, "stream report", err))
				return
			}

			fragment, ok := chunkText(resp)
			if !ok {
				continue
			}
			metrics.FragmentsTotal.Inc()
			if !yield(acc.add(fragment), nil) {
				return
			}
		}
	}
}

// chunkText joins the text parts of the first candidate. ok is false when the
// chunk carries no text at all.
func chunkText(resp *genai.GenerateContentResponse) (text string, ok bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", false
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if txt, isText := part.(genai.Text); isText {
			b.WriteString(string(txt))
			ok = true
		}
	}
	return b.String(), ok
}
