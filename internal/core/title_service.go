package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
)

const (
	primarySystemInstruction = "You are an expert content marketer and SEO specialist who creates compelling blog titles " +
		"that drive engagement and traffic."

	fallbackSystemInstruction = "You are an expert content marketer who creates compelling blog titles."

	// fallbackReasoning tags titles produced by the plain-text fallback path so
	// callers can tell them apart from titles the model returned as JSON.
	fallbackReasoning = "Generated with fallback method"

	primaryTemperature      = 0.8
	primaryMaxOutputTokens  = 1000
	fallbackMaxOutputTokens = 500
)

var (
	// ErrGeneration wraps every failure the service surfaces: the model is
	// unusable even after the fallback path.
	ErrGeneration = errors.New("failed to generate blog titles")

	ordinalPrefix = regexp.MustCompile(`^\d+\.\s*`)
	bulletPrefix  = regexp.MustCompile(`^-\s*`)
)

// GeneratedTitle is a transient suggestion; it only becomes a SavedTitle when
// the user saves it.
type GeneratedTitle struct {
	Title     string `json:"title"`
	Reasoning string `json:"reasoning,omitempty"`
}

type TitleService struct {
	llm Completer
}

func NewTitleService(llm Completer) *TitleService {
	return &TitleService{llm: llm}
}

// Generate asks the model for count title suggestions for a topic. The primary
// request demands a JSON array of {title, reasoning} objects; if that strict
// decode fails, one fallback request asks for plain text, one title per line.
// Non-decode failures do not trigger the fallback.
func (s *TitleService) Generate(ctx context.Context, topic string, count int, excludeTitles []string) ([]GeneratedTitle, error) {
	response, err := s.llm.Complete(ctx, CompletionRequest{
		SystemInstruction: primarySystemInstruction,
		Prompt:            buildPrimaryPrompt(topic, count, excludeTitles),
		Temperature:       primaryTemperature,
		MaxOutputTokens:   primaryMaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	titles, parseErr := parseTitlesJSON(response)
	if parseErr != nil {
		log.Printf("Strict JSON parse of title response failed, trying plain-text fallback: %v", parseErr)
		return s.generateFallback(ctx, topic, count, excludeTitles)
	}

	valid := titles[:0]
	for _, t := range titles {
		if strings.TrimSpace(t.Title) != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid titles in model response", ErrGeneration)
	}

	if len(valid) > count {
		valid = valid[:count]
	}
	return valid, nil
}

// parseTitlesJSON decodes the strict response format. A decode error or an
// empty array both mean the structured contract produced nothing usable.
func parseTitlesJSON(response string) ([]GeneratedTitle, error) {
	var titles []GeneratedTitle
	if err := json.Unmarshal([]byte(response), &titles); err != nil {
		return nil, fmt.Errorf("response is not a JSON array of titles: %w", err)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("response contained an empty title array")
	}
	return titles, nil
}

func (s *TitleService) generateFallback(ctx context.Context, topic string, count int, excludeTitles []string) ([]GeneratedTitle, error) {
	response, err := s.llm.Complete(ctx, CompletionRequest{
		SystemInstruction: fallbackSystemInstruction,
		Prompt:            buildFallbackPrompt(topic, count, excludeTitles),
		Temperature:       primaryTemperature,
		MaxOutputTokens:   fallbackMaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fallback request failed: %v", ErrGeneration, err)
	}

	var titles []GeneratedTitle
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = ordinalPrefix.ReplaceAllString(line, "")
		line = bulletPrefix.ReplaceAllString(line, "")
		if line == "" {
			continue
		}
		titles = append(titles, GeneratedTitle{
			Title:     line,
			Reasoning: fallbackReasoning,
		})
	}

	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: fallback response contained no titles", ErrGeneration)
	}

	if len(titles) > count {
		titles = titles[:count]
	}
	return titles, nil
}

func buildPrimaryPrompt(topic string, count int, excludeTitles []string) string {
	excludeText := ""
	if len(excludeTitles) > 0 {
		var b strings.Builder
		for _, title := range excludeTitles {
			b.WriteString("\n- ")
			b.WriteString(title)
		}
		excludeText = "\n\nIMPORTANT: Do not generate any of these existing titles:" + b.String()
	}

	return fmt.Sprintf(`Generate %d compelling, SEO-friendly blog post titles for the topic: "%s"

Requirements:
- Titles should be engaging and click-worthy
- Include relevant keywords naturally
- Vary the style (how-to, listicles, questions, etc.)
- Keep titles between 40-60 characters when possible
- Make them unique and creative%s

Return the response as a JSON array of objects with this format:
[
  {
    "title": "Your Blog Title Here",
    "reasoning": "Brief explanation of why this title works"
  }
]

Only return the JSON array, no additional text.`, count, topic, excludeText)
}

func buildFallbackPrompt(topic string, count int, excludeTitles []string) string {
	prompt := fmt.Sprintf("Generate %d compelling blog post titles for the topic: %q. Return only the titles, one per line.", count, topic)
	if len(excludeTitles) > 0 {
		prompt += "\n\nAvoid these existing titles:\n" + strings.Join(excludeTitles, "\n")
	}
	return prompt
}
