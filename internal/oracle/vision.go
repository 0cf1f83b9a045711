package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/rescuebite/rescuebite/internal/listing"
)

// GeminiVision is the external safety oracle: it sends the food photo
// and donor questionnaire to Google Gemini and parses a strict JSON
// verdict out of the reply. The core never invents a verdict itself and
// never treats an oracle failure as "safe".
type GeminiVision struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiVision(ctx context.Context, apiKey, modelName string) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiVision{client: client, model: client.GenerativeModel(modelName)}, nil
}

func (g *GeminiVision) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

const visionPrompt = `You are a food-safety inspector for a surplus-food rescue service.
Assess the attached photo of prepared food together with the metadata below.
Respond with ONLY a JSON object, no prose, shaped exactly as:
{"safe": bool, "risk_score": 0-100, "shelf_life_hours": number, "message": "one sentence"}
risk_score is a safety confidence: 100 means clearly safe, 0 clearly spoiled.
shelf_life_hours is how long the food remains safe from its preparation time.

Category: %s
Hours since prepared: %.1f
Donor says kept at safe temperature: %s
Donor says smells/looks fresh: %s
Donor says properly packed: %s`

// Assess returns the oracle verdict or listing.ErrOracleUnavailable when
// Gemini cannot be reached or replies with garbage. Callers must block
// listing creation on that error rather than assume safety.
func (g *GeminiVision) Assess(ctx context.Context, image []byte, category string, hoursOld float64, answers listing.SafetyAnswers) (listing.AIAssessment, error) {
	prompt := fmt.Sprintf(visionPrompt,
		category, hoursOld,
		string(answers.TempOk), string(answers.SmellOk), string(answers.PackingOk))

	parts := []genai.Part{genai.Text(prompt)}
	if len(image) > 0 {
		parts = append(parts, genai.ImageData("jpeg", image))
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		log.Printf("[vision] gemini call failed: %v", err)
		return listing.AIAssessment{}, listing.ErrOracleUnavailable
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return listing.AIAssessment{}, listing.ErrOracleUnavailable
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text += string(txt)
		}
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		log.Printf("[vision] unparseable verdict: %v", err)
		return listing.AIAssessment{}, listing.ErrOracleUnavailable
	}
	return verdict, nil
}

// parseVerdict tolerates markdown code fences around the JSON body,
// which Gemini adds despite instructions.
func parseVerdict(text string) (listing.AIAssessment, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw struct {
		Safe           bool    `json:"safe"`
		RiskScore      float64 `json:"risk_score"`
		ShelfLifeHours float64 `json:"shelf_life_hours"`
		Message        string  `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return listing.AIAssessment{}, err
	}
	if raw.ShelfLifeHours <= 0 {
		return listing.AIAssessment{}, fmt.Errorf("verdict missing shelf life")
	}
	return listing.AIAssessment{
		Safe:           raw.Safe,
		RiskScore:      raw.RiskScore,
		ShelfLifeHours: raw.ShelfLifeHours,
		Message:        raw.Message,
	}, nil
}
