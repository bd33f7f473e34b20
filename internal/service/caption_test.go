package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
)

// fakeClient answers from a per-call script and records requests.
type fakeClient struct {
	mu      sync.Mutex
	calls   []*InferenceRequest
	respond func(call int, req *InferenceRequest) (string, error)
}

func (f *fakeClient) Complete(ctx context.Context, req *InferenceRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.respond(n, req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeReader returns the ref's bytes, or fails for the listed IDs.
type fakeReader struct {
	unreadable map[string]bool
	reads      int
}

func (r *fakeReader) Read(ctx context.Context, ref domain.PhotoRef) ([]byte, error) {
	r.reads++
	if r.unreadable[ref.ID] {
		return nil, fmt.Errorf("%w: %s missing", ErrPhotoUnreadable, ref.ID)
	}
	return []byte("img-" + ref.ID), nil
}

func quietLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard, ServiceName: "test"})
}

func newTestCaptionService(client InferenceClient, reader PhotoReader, apiKey string) *CaptionService {
	return NewCaptionService(client, reader, &CaptionConfig{
		APIKey:    apiKey,
		Model:     "test-model",
		MaxTokens: 500,
		Fallbacks: DefaultFallbacks(),
	}, quietLogger(), nil)
}

func refs(ids ...string) []domain.PhotoRef {
	out := make([]domain.PhotoRef, len(ids))
	for i, id := range ids {
		out[i] = domain.PhotoRef{ID: id, Name: id + ".jpg"}
	}
	return out
}

// captionFor produces a deterministic answer tied to the image bytes.
func captionFor(req *InferenceRequest) string {
	return fmt.Sprintf(`{"punchline": "p-%s", "description": "d-%s"}`, req.ImageBase64, req.ImageBase64)
}

func TestGenerate_AlignedWhenEndpointSucceeds(t *testing.T) {
	client := &fakeClient{respond: func(_ int, req *InferenceRequest) (string, error) {
		return captionFor(req), nil
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	for _, n := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("%d photos", n), func(t *testing.T) {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("photo%d", i)
			}
			batch, err := svc.Generate(context.Background(), refs(ids...), nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(batch) != n {
				t.Fatalf("got %d captions, want %d", len(batch), n)
			}
			for i, c := range batch {
				want := captionOfID(ids[i])
				if c != want {
					t.Errorf("caption %d = %+v, want %+v", i, c, want)
				}
			}
		})
	}
}

func captionOfID(id string) domain.Caption {
	req := &InferenceRequest{ImageBase64: encode("img-" + id)}
	return domain.Caption{Punchline: "p-" + req.ImageBase64, Description: "d-" + req.ImageBase64}
}

func TestGenerate_ConfigurationErrorMakesNoCalls(t *testing.T) {
	for _, key := range []string{"", config.PlaceholderAPIKey} {
		t.Run(fmt.Sprintf("key=%q", key), func(t *testing.T) {
			client := &fakeClient{respond: func(int, *InferenceRequest) (string, error) {
				return `{"punchline":"x","description":"y"}`, nil
			}}
			reader := &fakeReader{}
			events := 0
			svc := newTestCaptionService(client, reader, key)

			batch, err := svc.Generate(context.Background(), refs("a", "b"), func(domain.ProgressEvent) { events++ })
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if batch != nil {
				t.Errorf("expected no batch, got %v", batch)
			}
			if client.callCount() != 0 || reader.reads != 0 || events != 0 {
				t.Errorf("expected no I/O, got calls=%d reads=%d events=%d", client.callCount(), reader.reads, events)
			}
		})
	}
}

func TestGenerate_EmptyInput(t *testing.T) {
	svc := newTestCaptionService(&fakeClient{}, &fakeReader{}, "sk-test")
	if _, err := svc.Generate(context.Background(), nil, nil); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("expected ErrNoPhotos, got %v", err)
	}
}

func TestGenerate_UnreadablePhotoGetsPlaceholder(t *testing.T) {
	client := &fakeClient{respond: func(_ int, req *InferenceRequest) (string, error) {
		return captionFor(req), nil
	}}
	reader := &fakeReader{unreadable: map[string]bool{"b": true}}
	svc := newTestCaptionService(client, reader, "sk-test")

	var statuses []domain.ProgressStatus
	batch, err := svc.Generate(context.Background(), refs("a", "b", "c"), func(ev domain.ProgressEvent) {
		statuses = append(statuses, ev.Status)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("got %d captions, want 3", len(batch))
	}
	if batch[1] != DefaultFallbacks().Unreadable {
		t.Errorf("caption 2 = %+v, want unreadable placeholder", batch[1])
	}
	if batch[1].Punchline != "Image processing failed" {
		t.Errorf("unexpected punchline %q", batch[1].Punchline)
	}
	if batch[0] != captionOfID("a") || batch[2] != captionOfID("c") {
		t.Errorf("neighbours changed: %+v", batch)
	}
	if client.callCount() != 2 {
		t.Errorf("endpoint called %d times, want 2", client.callCount())
	}

	want := []domain.ProgressStatus{
		domain.ProgressProcessing, domain.ProgressCompleted,
		domain.ProgressProcessing, domain.ProgressFailed,
		domain.ProgressProcessing, domain.ProgressCompleted,
		domain.ProgressComplete,
	}
	if fmt.Sprint(statuses) != fmt.Sprint(want) {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}
}

func TestGenerate_ParseErrorIsIsolated(t *testing.T) {
	client := &fakeClient{respond: func(call int, req *InferenceRequest) (string, error) {
		if call == 1 {
			return "Sure! Here is a caption: the cat is funny.", nil
		}
		return `{"punchline":"p","description":"d"}`, nil
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	batch, err := svc.Generate(context.Background(), refs("a", "b"), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := domain.CaptionBatch{
		{Punchline: "Processing error", Description: "Our AI generated content that couldn't be processed correctly. Please try again."},
		{Punchline: "p", Description: "d"},
	}
	if len(batch) != 2 || batch[0] != want[0] || batch[1] != want[1] {
		t.Errorf("batch = %+v, want %+v", batch, want)
	}
}

func TestGenerate_MalformedResponseUsesParsePlaceholder(t *testing.T) {
	client := &fakeClient{respond: func(call int, req *InferenceRequest) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("%w: no text content", ErrMalformedResponse)
		}
		return `{"punchline":"p","description":"d"}`, nil
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	batch, err := svc.Generate(context.Background(), refs("a", "b"), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if batch[0] != DefaultFallbacks().Parse {
		t.Errorf("caption 1 = %+v, want parse placeholder", batch[0])
	}
}

func TestGenerate_AllTransportFailures(t *testing.T) {
	client := &fakeClient{respond: func(int, *InferenceRequest) (string, error) {
		return "", fmt.Errorf("%w: HTTP 500", ErrInferenceTransport)
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	var last domain.ProgressEvent
	batch, err := svc.Generate(context.Background(), refs("a", "b"), func(ev domain.ProgressEvent) { last = ev })
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !errors.Is(err, ErrInferenceTransport) {
		t.Errorf("expected per-photo transport errors to be joined, got %v", err)
	}
	if batch != nil {
		t.Errorf("expected no batch, got %+v", batch)
	}
	if last.Status == domain.ProgressComplete {
		t.Error("complete event must not be emitted when every photo failed")
	}
}

func TestGenerate_TransportFailureIsIsolated(t *testing.T) {
	client := &fakeClient{respond: func(call int, req *InferenceRequest) (string, error) {
		if call == 2 {
			return "", fmt.Errorf("%w: timeout", ErrInferenceTransport)
		}
		return captionFor(req), nil
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	batch, err := svc.Generate(context.Background(), refs("a", "b", "c"), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if batch[1] != DefaultFallbacks().Transport {
		t.Errorf("caption 2 = %+v, want transport placeholder", batch[1])
	}
}

func TestGenerate_ProgressMonotonic(t *testing.T) {
	client := &fakeClient{respond: func(call int, req *InferenceRequest) (string, error) {
		if call%2 == 0 {
			return "not json", nil
		}
		return captionFor(req), nil
	}}
	reader := &fakeReader{unreadable: map[string]bool{"p3": true}}
	svc := newTestCaptionService(client, reader, "sk-test")

	var events []domain.ProgressEvent
	_, err := svc.Generate(context.Background(), refs("p0", "p1", "p2", "p3", "p4", "p5", "p6"), func(ev domain.ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(events) != 2*7+1 {
		t.Fatalf("got %d events, want 15", len(events))
	}
	prev := -1
	for i, ev := range events {
		if ev.PercentComplete < prev {
			t.Errorf("event %d: percent %d decreased from %d", i, ev.PercentComplete, prev)
		}
		if ev.TotalPhotos != 7 {
			t.Errorf("event %d: total %d", i, ev.TotalPhotos)
		}
		prev = ev.PercentComplete
	}
	final := events[len(events)-1]
	if final.Status != domain.ProgressComplete || final.PercentComplete != 100 {
		t.Errorf("final event = %+v", final)
	}
	// round(1/7*100) = 14 for the second processing event
	if events[2].PercentComplete != 14 || events[1].PercentComplete != 14 {
		t.Errorf("unexpected percents %d, %d", events[1].PercentComplete, events[2].PercentComplete)
	}
	if events[0].PercentComplete != 0 || events[0].CurrentPhoto != 1 {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	client := &fakeClient{respond: func(_ int, req *InferenceRequest) (string, error) {
		if strings.Contains(req.ImageBase64, encode("img-b")) {
			return "garbage", nil
		}
		return captionFor(req), nil
	}}
	svc := newTestCaptionService(client, &fakeReader{unreadable: map[string]bool{"c": true}}, "sk-test")

	first, err := svc.Generate(context.Background(), refs("a", "b", "c", "d"), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := svc.Generate(context.Background(), refs("a", "b", "c", "d"), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("outputs differ:\n%v\n%v", first, second)
	}
}

func TestGenerate_RequestShape(t *testing.T) {
	client := &fakeClient{respond: func(int, *InferenceRequest) (string, error) {
		return `{"punchline":"p","description":"d"}`, nil
	}}
	svc := newTestCaptionService(client, &fakeReader{}, "sk-test")

	photos := []domain.PhotoRef{{ID: "x", Name: "Beach.PNG"}, {ID: "y", Name: "cat.gif"}}
	if _, err := svc.Generate(context.Background(), photos, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if client.calls[0].MediaType != "image/png" || client.calls[1].MediaType != "image/jpeg" {
		t.Errorf("media types = %s, %s", client.calls[0].MediaType, client.calls[1].MediaType)
	}
	if client.calls[0].Model != "test-model" || client.calls[0].MaxTokens != 500 {
		t.Errorf("unexpected request %+v", client.calls[0])
	}
	if !strings.Contains(client.calls[0].Prompt, `"punchline"`) {
		t.Error("default prompt was not applied")
	}
	if client.calls[0].ImageBase64 != encode("img-x") {
		t.Errorf("image not base64 encoded: %q", client.calls[0].ImageBase64)
	}
}

func TestParseCaption(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    domain.Caption
		wantErr bool
	}{
		{"plain", `{"punchline":"a","description":"b"}`, domain.Caption{Punchline: "a", Description: "b"}, false},
		{"whitespace", "  \n{\"punchline\":\"a\",\"description\":\"b\"}\n", domain.Caption{Punchline: "a", Description: "b"}, false},
		{"fenced", "```json\n{\"punchline\":\"a\",\"description\":\"b\"}\n```", domain.Caption{Punchline: "a", Description: "b"}, false},
		{"bare fence", "```\n{\"punchline\":\"a\",\"description\":\"b\"}\n```", domain.Caption{Punchline: "a", Description: "b"}, false},
		{"prose", "Here you go!", domain.Caption{}, true},
		{"missing description", `{"punchline":"a"}`, domain.Caption{}, true},
		{"extra field", `{"punchline":"a","description":"b","mood":"c"}`, domain.Caption{}, true},
		{"number", `{"punchline":1,"description":"b"}`, domain.Caption{}, true},
		{"null", `{"punchline":null,"description":"b"}`, domain.Caption{}, true},
		{"array", `[{"punchline":"a","description":"b"}]`, domain.Caption{}, true},
		{"trailing", `{"punchline":"a","description":"b"} and more`, domain.Caption{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCaption(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("expected ErrMalformedResponse, got %v (%+v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCaption: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMediaTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.png":             "image/png",
		"A.PNG":             "image/png",
		"photos/u/x.jpg":    "image/jpeg",
		"anim.gif":          "image/jpeg",
		"no-extension":      "image/jpeg",
		"https://x/y/z.png": "image/png",
	}
	for name, want := range tests {
		if got := MediaTypeFor(name); got != want {
			t.Errorf("MediaTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNewCaptionConfigOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Inference.APIKey = "sk"
	cfg.Inference.Model = "m"
	cfg.Inference.MaxTokens = 42
	cfg.Caption.Fallbacks.Transport.Punchline = "Oops"

	cc := NewCaptionConfig(cfg)
	if cc.APIKey != "sk" || cc.Model != "m" || cc.MaxTokens != 42 {
		t.Errorf("unexpected config %+v", cc)
	}
	if cc.Fallbacks.Transport.Punchline != "Oops" {
		t.Errorf("override not applied: %+v", cc.Fallbacks.Transport)
	}
	if cc.Fallbacks.Transport.Description != DefaultFallbacks().Transport.Description {
		t.Errorf("empty override should keep default description")
	}
	if cc.Fallbacks.Parse != DefaultFallbacks().Parse {
		t.Errorf("parse fallback changed: %+v", cc.Fallbacks.Parse)
	}
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
