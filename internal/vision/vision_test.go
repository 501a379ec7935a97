package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"jobflow_backend/internal/adapters/storage"
)

type fakeMedia struct {
	objects map[string]storage.Object
	calls   atomic.Int32
}

func (f *fakeMedia) DownloadObject(_ context.Context, _ string, key string) (storage.Object, error) {
	f.calls.Add(1)
	obj, ok := f.objects[key]
	if !ok {
		return storage.Object{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return obj, nil
}

func TestFetchMediaKeepsOrderAndSkipsDocuments(t *testing.T) {
	src := &fakeMedia{objects: map[string]storage.Object{
		"a.jpg": {Key: "a.jpg", ContentType: "image/jpeg", Data: []byte{1}},
		"b.pdf": {Key: "b.pdf", ContentType: "application/pdf", Data: []byte{2}},
		"c.mp4": {Key: "c.mp4", ContentType: "video/mp4", Data: []byte{3}},
	}}

	got, err := fetchMedia(context.Background(), src, "bucket", []string{"a.jpg", " a.jpg", "b.pdf", "c.mp4", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Key != "a.jpg" || got[1].Key != "c.mp4" {
		t.Fatalf("unexpected media %+v", got)
	}
	if src.calls.Load() != 3 {
		t.Fatalf("expected 3 downloads, got %d", src.calls.Load())
	}
}

func TestFetchMediaErrors(t *testing.T) {
	src := &fakeMedia{objects: map[string]storage.Object{
		"doc.pdf": {Key: "doc.pdf", ContentType: "application/pdf"},
	}}
	if _, err := fetchMedia(context.Background(), src, "b", nil); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia, got %v", err)
	}
	if _, err := fetchMedia(context.Background(), src, "b", []string{"doc.pdf"}); !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia for documents only, got %v", err)
	}
	if _, err := fetchMedia(context.Background(), src, "b", []string{"missing.jpg"}); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound to survive the fan-out, got %v", err)
	}
}

func TestToAnalysisNormalizes(t *testing.T) {
	negative := int64(-5)
	got := toAnalysis(SaveScopeAnalysisInput{
		DetectedParams: map[string]any{
			"Bedrooms":  3.0,
			"has_pets":  true,
			"cleanType": " Deep ",
			"notes":     "",
			"empty":     nil,
		},
		SuggestedPriceCents: &negative,
		Confidence:          85,
		Reasoning:           "  two bedrooms visible  ",
	}, 2)

	if got.DetectedParams["bedrooms"] != 3.0 || got.DetectedParams["hasPets"] != true || got.DetectedParams["cleanType"] != "deep" {
		t.Fatalf("unexpected params %+v", got.DetectedParams)
	}
	if _, ok := got.DetectedParams["notes"]; ok {
		t.Fatal("expected empty string to be dropped")
	}
	if got.SuggestedPriceCents != nil {
		t.Fatal("expected non-positive suggestion to be dropped")
	}
	if got.Confidence != 0.85 {
		t.Fatalf("expected 0.85, got %v", got.Confidence)
	}
	if got.Reasoning != "two bedrooms visible" || got.MediaCount != 2 {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0.4, 0.4},
		{1, 1},
		{60, 0.6},
		{250, 1},
	}
	for _, tt := range tests {
		if got := clampConfidence(tt.in); got != tt.want {
			t.Fatalf("clampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildPromptMentionsServiceParams(t *testing.T) {
	p := buildPrompt("junk_removal", 3)
	if !strings.Contains(p, "loadSize") || !strings.Contains(p, "Media items attached: 3") {
		t.Fatalf("unexpected prompt %q", p)
	}
	if !strings.Contains(buildPrompt("window_cleaning", 1), "camelCase") {
		t.Fatal("expected generic guide for unknown service")
	}
}
