package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeCompleter scripts one response (or error) per call, in order, and
// records every request it sees.
type fakeCompleter struct {
	responses []string
	errs      []error
	requests  []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func TestGenerateParsesStrictJSON(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`[
			{"title": "Poker Math for Beginners", "reasoning": "How-to angle"},
			{"title": "7 Poker Tells You Keep Missing", "reasoning": "Listicle"},
			{"title": "Is GTO Poker Overrated?", "reasoning": "Question hook"}
		]`,
	}}
	svc := NewTitleService(llm)

	titles, err := svc.Generate(context.Background(), "poker strategy", 5, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(titles) != 3 {
		t.Fatalf("got %d titles, want 3", len(titles))
	}
	for _, title := range titles {
		if strings.TrimSpace(title.Title) == "" {
			t.Errorf("returned an empty title: %+v", title)
		}
		if title.Reasoning == fallbackReasoning {
			t.Errorf("strict-parse title carries the fallback marker: %+v", title)
		}
	}
	if len(llm.requests) != 1 {
		t.Fatalf("model called %d times, want 1", len(llm.requests))
	}

	req := llm.requests[0]
	if req.Temperature != 0.8 {
		t.Errorf("temperature = %v, want 0.8", req.Temperature)
	}
	if req.MaxOutputTokens != 1000 {
		t.Errorf("max output tokens = %d, want 1000", req.MaxOutputTokens)
	}
	if !strings.Contains(req.Prompt, `"poker strategy"`) {
		t.Errorf("prompt does not mention the topic: %s", req.Prompt)
	}
}

func TestGenerateTruncatesToCount(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`[{"title":"A"},{"title":"B"},{"title":"C"},{"title":"D"},{"title":"E"},{"title":"F"}]`,
	}}
	svc := NewTitleService(llm)

	titles, err := svc.Generate(context.Background(), "go testing", 4, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(titles) != 4 {
		t.Fatalf("got %d titles, want 4", len(titles))
	}
	if titles[0].Title != "A" || titles[3].Title != "D" {
		t.Errorf("truncation should keep the first entries, got %+v", titles)
	}
}

func TestGenerateFiltersEntriesWithoutTitles(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`[{"title":"Keep Me"},{"title":"   "},{"reasoning":"no title at all"},{"title":"Also Keep"}]`,
	}}
	svc := NewTitleService(llm)

	titles, err := svc.Generate(context.Background(), "topic", 5, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2", len(titles))
	}
	if titles[0].Title != "Keep Me" || titles[1].Title != "Also Keep" {
		t.Errorf("unexpected titles after filtering: %+v", titles)
	}
}

func TestGenerateAllEntriesInvalidFailsWithoutFallback(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`[{"title":"  "},{"reasoning":"nothing"}]`}}
	svc := NewTitleService(llm)

	_, err := svc.Generate(context.Background(), "topic", 5, nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if len(llm.requests) != 1 {
		t.Fatalf("model called %d times, want 1 (no fallback for valid JSON)", len(llm.requests))
	}
}

func TestGenerateFallsBackOnInvalidJSON(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		"Here are some great titles for you!",
		"1. First Fallback Title\n- Second Fallback Title\n\n3. Third Fallback Title\n",
	}}
	svc := NewTitleService(llm)

	titles, err := svc.Generate(context.Background(), "topic", 2, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(llm.requests) != 2 {
		t.Fatalf("model called %d times, want 2 (primary + one fallback)", len(llm.requests))
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2", len(titles))
	}
	if titles[0].Title != "First Fallback Title" {
		t.Errorf("ordinal prefix not stripped: %q", titles[0].Title)
	}
	if titles[1].Title != "Second Fallback Title" {
		t.Errorf("bullet prefix not stripped: %q", titles[1].Title)
	}
	for _, title := range titles {
		if title.Reasoning != fallbackReasoning {
			t.Errorf("fallback title missing marker: %+v", title)
		}
	}

	fallbackReq := llm.requests[1]
	if fallbackReq.MaxOutputTokens != 500 {
		t.Errorf("fallback max output tokens = %d, want 500", fallbackReq.MaxOutputTokens)
	}
	if fallbackReq.Temperature != 0.8 {
		t.Errorf("fallback temperature = %v, want 0.8", fallbackReq.Temperature)
	}
	if strings.Contains(fallbackReq.Prompt, "JSON") {
		t.Errorf("fallback prompt should not ask for JSON: %s", fallbackReq.Prompt)
	}
}

func TestGenerateFallsBackOnEmptyArray(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`[]`,
		"Only Title",
	}}
	svc := NewTitleService(llm)

	titles, err := svc.Generate(context.Background(), "topic", 5, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(llm.requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(llm.requests))
	}
	if len(titles) != 1 || titles[0].Title != "Only Title" {
		t.Fatalf("unexpected fallback titles: %+v", titles)
	}
}

func TestGeneratePrimaryCallErrorSkipsFallback(t *testing.T) {
	llm := &fakeCompleter{errs: []error{errors.New("model unavailable")}}
	svc := NewTitleService(llm)

	_, err := svc.Generate(context.Background(), "topic", 5, nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if len(llm.requests) != 1 {
		t.Fatalf("model called %d times, want 1 (no fallback for call failures)", len(llm.requests))
	}
}

func TestGenerateFallbackCallErrorFails(t *testing.T) {
	llm := &fakeCompleter{
		responses: []string{"not json"},
		errs:      []error{nil, errors.New("model unavailable")},
	}
	svc := NewTitleService(llm)

	_, err := svc.Generate(context.Background(), "topic", 5, nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if len(llm.requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(llm.requests))
	}
}

func TestGenerateFallbackBlankResponseFails(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"not json", "\n\n  \n"}}
	svc := NewTitleService(llm)

	_, err := svc.Generate(context.Background(), "topic", 5, nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestGenerateIncludesExclusionList(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`[{"title":"Fresh Title"}]`}}
	svc := NewTitleService(llm)

	exclude := []string{"Old Title One", "Old Title Two"}
	if _, err := svc.Generate(context.Background(), "topic", 5, exclude); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	prompt := llm.requests[0].Prompt
	if !strings.Contains(prompt, "Do not generate any of these existing titles:") {
		t.Error("prompt missing the exclusion instruction")
	}
	for _, title := range exclude {
		if !strings.Contains(prompt, title) {
			t.Errorf("prompt missing excluded title %q", title)
		}
	}

	// Without exclusions the instruction should be absent.
	llm2 := &fakeCompleter{responses: []string{`[{"title":"Fresh Title"}]`}}
	svc2 := NewTitleService(llm2)
	if _, err := svc2.Generate(context.Background(), "topic", 5, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(llm2.requests[0].Prompt, "Do not generate") {
		t.Error("prompt should not carry an exclusion instruction when the list is empty")
	}
}
