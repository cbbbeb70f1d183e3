package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/callshield/callshield/pkg/gateway/registry"
)

// ErrTranscriptTooShort marks an SE pass that produced no analyzable
// speech. Callers skip the verdict instead of recording one.
var ErrTranscriptTooShort = fmt.Errorf("social: transcript too short")

const socialSystemPrompt = `You are a real-time social engineering detection system.
Analyze the following text from a phone call.
Identify if the speaker is using any social engineering tactics such as:
- Urgency (rushing the victim)
- Fear/Intimidation (threats of legal action, account closure)
- Authority (pretending to be police, bank official)
- Secrecy (telling victim not to tell anyone)
- Credential Harvesting (asking for OTP, passwords, SSN)

Return a JSON object with:
- risk_score: 0 to 100 (integer)
- risk_level: "SAFE", "LOW", "MEDIUM", "HIGH"
- flagged_phrases: list of strings (specific quotes that are suspicious)
- reason: brief explanation

If the text is harmless or just normal conversation, return risk_score 0 and risk_level "SAFE".
Output ONLY valid JSON, no markdown formatting.`

// TextAnalyzer produces a verdict from a call transcript. The production
// implementation talks to Gemini; tests inject a fake.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, transcript string) (registry.SEResult, error)
}

// GeminiAnalyzer implements TextAnalyzer on the Gemini API.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("social: create gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

func (g *GeminiAnalyzer) AnalyzeText(ctx context.Context, transcript string) (registry.SEResult, error) {
	prompt := socialSystemPrompt + "\n\nTranscript to analyze:\n" + transcript

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	})
	if err != nil {
		return registry.SEResult{}, fmt.Errorf("social: generate content: %w", err)
	}

	return ParseVerdict(resp.Text())
}

// ParseVerdict decodes the model's JSON verdict, tolerating markdown
// code fences around the payload.
func ParseVerdict(raw string) (registry.SEResult, error) {
	cleaned := stripCodeFences(raw)

	var result registry.SEResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return registry.SEResult{}, fmt.Errorf("social: decode verdict: %w", err)
	}
	if result.RiskScore < 0 {
		result.RiskScore = 0
	}
	if result.RiskScore > 100 {
		result.RiskScore = 100
	}
	return result, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// SocialDetector runs the transcribe-then-analyze pipeline over a window
// of caller audio.
type SocialDetector struct {
	transcriber Transcriber
	analyzer    TextAnalyzer
}

func NewSocialDetector(transcriber Transcriber, analyzer TextAnalyzer) *SocialDetector {
	return &SocialDetector{transcriber: transcriber, analyzer: analyzer}
}

// Detect transcribes the WAV clip and scores the transcript. Transcripts
// below five characters carry no signal and are skipped.
func (d *SocialDetector) Detect(ctx context.Context, wav []byte) (registry.SEResult, error) {
	text, err := d.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return registry.SEResult{}, fmt.Errorf("social: transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 5 {
		return registry.SEResult{}, ErrTranscriptTooShort
	}

	result, err := d.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		return registry.SEResult{}, err
	}
	result.Transcript = text
	return result, nil
}
