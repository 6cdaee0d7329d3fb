package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"autocloud.com/car-insurance-estimator/internal/apperr"
	"autocloud.com/car-insurance-estimator/internal/reference"
)

type fakeProvider struct {
	rows  []reference.Row
	err   error
	calls int
}

func (f *fakeProvider) Source() string { return "BigQuery" }

func (f *fakeProvider) FetchReferenceCosts(context.Context) ([]reference.Row, error) {
	f.calls++
	return f.rows, f.err
}

func newTestEstimator(refs reference.Provider, streamer *fakeStreamer) *Estimator {
	logger := zap.NewNop().Sugar()
	return NewEstimator(refs, NewGenerator(streamer, logger), "TEMPLATE", logger)
}

func drain(seq func(func(string, error) bool)) ([]string, error) {
	var got []string
	var lastErr error
	seq(func(report string, err error) bool {
		if err != nil {
			lastErr = err
			return false
		}
		got = append(got, report)
		return true
	})
	return got, lastErr
}

func TestEstimateTextOnlyWithEmptyReferenceTable(t *testing.T) {
	refs := &fakeProvider{}
	streamer := &fakeStreamer{chunks: []*genai.GenerateContentResponse{textChunk("report")}}

	got, err := drain(newTestEstimator(refs, streamer).Estimate(context.Background(), "Front bumper is cracked", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "report" {
		t.Fatalf("got %q", got)
	}
	if len(streamer.parts) != 1 {
		t.Fatalf("expected one content part, got %d", len(streamer.parts))
	}
	text := string(streamer.parts[0].(genai.Text))
	want := "TEMPLATE\n\n### Reference Repair Costs (from BigQuery):\nUser Description:Front bumper is cracked\n    Image: Not provided"
	if text != want {
		t.Fatalf("prompt text = %q, want %q", text, want)
	}
}

func TestEstimateImageOnly(t *testing.T) {
	path := writeFile(t, "car.jpg", jpegBytes(t))
	streamer := &fakeStreamer{chunks: []*genai.GenerateContentResponse{textChunk("ok")}}

	if _, err := drain(newTestEstimator(&fakeProvider{}, streamer).Estimate(context.Background(), "", path)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(streamer.parts) != 2 {
		t.Fatalf("expected two content parts, got %d", len(streamer.parts))
	}
	if blob := streamer.parts[1].(genai.Blob); blob.MIMEType != "image/jpeg" {
		t.Fatalf("image part MIME = %q", blob.MIMEType)
	}
	text := string(streamer.parts[0].(genai.Text))
	if !strings.Contains(text, "No description provided.") || !strings.Contains(text, "Image: Provided") {
		t.Fatalf("unexpected user context in %q", text)
	}
}

func TestEstimateWithoutReferenceSource(t *testing.T) {
	streamer := &fakeStreamer{chunks: []*genai.GenerateContentResponse{textChunk("ok")}}

	if _, err := drain(newTestEstimator(nil, streamer).Estimate(context.Background(), "dent", "")); err != nil {
		t.Fatal(err)
	}
	if text := string(streamer.parts[0].(genai.Text)); strings.Contains(text, "Reference Repair Costs") {
		t.Fatalf("unexpected reference block in %q", text)
	}
}

func TestEstimateDataSourceErrorAbortsBeforeStreaming(t *testing.T) {
	refs := &fakeProvider{err: errors.New("403 access denied")}
	streamer := &fakeStreamer{chunks: []*genai.GenerateContentResponse{textChunk("never")}}

	got, err := drain(newTestEstimator(refs, streamer).Estimate(context.Background(), "dent", ""))
	if !errors.Is(err, apperr.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
	if len(got) != 0 || streamer.calls != 0 {
		t.Fatalf("expected no output and no model call, got %q and %d calls", got, streamer.calls)
	}
}

func TestEstimateBadImageAbortsBeforeAnyCall(t *testing.T) {
	refs := &fakeProvider{}
	streamer := &fakeStreamer{}
	path := writeFile(t, "notes.txt", []byte("plain text"))

	_, err := drain(newTestEstimator(refs, streamer).Estimate(context.Background(), "dent", path))
	if !errors.Is(err, apperr.ErrImageEncoding) {
		t.Fatalf("expected image encoding error, got %v", err)
	}
	if refs.calls != 0 || streamer.calls != 0 {
		t.Fatalf("expected no external calls, got refs=%d model=%d", refs.calls, streamer.calls)
	}
}

func TestEstimateMidStreamFailure(t *testing.T) {
	partial := "Detected Parts Damaged: Front Bumper"
	streamer := &fakeStreamer{
		chunks: []*genai.GenerateContentResponse{textChunk(partial)},
		err:    errors.New("stream reset"),
	}

	got, err := drain(newTestEstimator(&fakeProvider{}, streamer).Estimate(context.Background(), "bumper", ""))
	if !errors.Is(err, apperr.ErrUpstreamGeneration) {
		t.Fatalf("expected upstream generation error, got %v", err)
	}
	if len(got) != 1 || got[len(got)-1] != partial {
		t.Fatalf("last value = %q, want %q", got, partial)
	}
}

func TestEstimateRequestConsumerStopsEarly(t *testing.T) {
	streamer := &fakeStreamer{chunks: []*genai.GenerateContentResponse{textChunk("a"), textChunk("b")}}
	est := newTestEstimator(&fakeProvider{}, streamer)

	ctx := WithEstimateID(context.Background(), "fixed-id")
	for range est.EstimateRequest(ctx, DamageReportRequest{Description: "dent"}) {
		break
	}
	if streamer.ctx.Err() == nil {
		t.Fatal("expected the model session to be released")
	}
}
