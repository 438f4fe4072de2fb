package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI backend model to use for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response           string   `json:"response"`
	Images             [][]byte `json:"images,omitempty"`
	InputTokenCount    int32    `json:"input_token_count"`
	Thoughts           string   `json:"thoughts"`
	ThoughtsTokenCount int32    `json:"thoughts_token_count"`
	OutputTokenCount   int32    `json:"output_token_count"`
	TotalTokenCount    int32    `json:"total_token_count"`
	IsTest             bool     `json:"is_test"`
}

// ChatTurn is one message of the planner conversation as sent to the model.
type ChatTurn struct {
	Role    string
	Content string
	Images  [][]byte
}

// StudioLLMProvider is everything the planner and the print pipeline need from
// the model backend. Mocked in tests.
type StudioLLMProvider interface {
	Complete(system string, turns []ChatTurn, modelName LLMModelName) (*LLMResponse, error)
	GenerateImage(prompt string, referenceImages [][]byte, aspect float64, sizeHint string, modelName LLMModelName) (*LLMResponse, error)
	RewritePrompt(prompt string) (string, error)
}

type GoogleStudioLLM struct{}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func GetAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nil response")
	}

	var allImageData [][]byte

	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}

		for _, part := range cand.Content.Parts {
			inlineData := part.InlineData
			if inlineData != nil {
				if strings.HasPrefix(inlineData.MIMEType, "image/") {
					if len(inlineData.Data) > 0 {
						allImageData = append(allImageData, inlineData.Data)
					}
				}
			}
		}
	}

	if len(allImageData) == 0 {
		return nil, nil
	}

	return allImageData, nil
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	var thinkingContent string
	for _, c := range result.Candidates {
		fmt.Println("Finish reason: ", c.FinishReason, " Finish message: ", c.FinishMessage)

		if len(c.SafetyRatings) > 0 {
			fmt.Println("[Safety] Safety ratings present:", len(c.SafetyRatings))
			for _, rating := range c.SafetyRatings {
				fmt.Println("[Safety] rating:", rating.Category, "Score:", rating.Probability, " Blocked:", rating.Blocked)
				if rating.Blocked {
					return nil, fmt.Errorf("content violation: response blocked, contains %s", rating.Category)
				}
			}
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				if result.UsageMetadata != nil && result.UsageMetadata.ThoughtsTokenCount > 25000 {
					fmt.Println("Warning: Thought content is too long:", result.UsageMetadata.ThoughtsTokenCount)
				}
				thinkingContent = part.Text
				continue
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

// aspectPhrase maps a numeric target aspect to a phrase the image model
// understands. The model takes ratio instructions from the prompt text.
func aspectPhrase(aspect float64) string {
	switch {
	case aspect > 1.1:
		return "Aspect ratio 3:2 landscape"
	case aspect < 0.9:
		return "Aspect ratio 2:3 portrait"
	default:
		return "Aspect ratio 1:1 square"
	}
}

// Complete runs one planner conversation turn. Reference images of a turn are
// sent inline alongside the text.
func (GoogleStudioLLM) Complete(system string, turns []ChatTurn, modelName LLMModelName) (*LLMResponse, error) {
	ctx := context.Background()
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %v", err)
	}

	var contents []*genai.Content
	for _, turn := range turns {
		role := genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		if turn.Content != "" {
			parts = append(parts, &genai.Part{Text: turn.Content})
		}
		for _, img := range turn.Images {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: "image/png",
					Data:     img,
				},
			})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), contents, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 50000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: system},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	inputTokenCount := result.UsageMetadata.PromptTokenCount
	thoughtsTokenCount := result.UsageMetadata.ThoughtsTokenCount
	outputTokenCount := result.UsageMetadata.CandidatesTokenCount
	totalTokenCount := result.UsageMetadata.TotalTokenCount
	fmt.Println("Input token count:", inputTokenCount)
	fmt.Println("Output token count:", outputTokenCount)
	fmt.Println("Total token count:", totalTokenCount)

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return &LLMResponse{
		Response:           llmResponseText.Text,
		Thoughts:           llmResponseText.Thoughts,
		InputTokenCount:    inputTokenCount,
		ThoughtsTokenCount: thoughtsTokenCount,
		OutputTokenCount:   outputTokenCount,
		TotalTokenCount:    totalTokenCount,
		IsTest:             false,
	}, nil
}

// GenerateImage produces one image for the given prompt. Reference images go
// inline before the prompt, the same way the planner sends them, so identity
// details carry over into the artwork.
func (GoogleStudioLLM) GenerateImage(prompt string, referenceImages [][]byte, aspect float64, sizeHint string, modelName LLMModelName) (*LLMResponse, error) {
	ctx := context.Background()
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %v", err)
	}

	var parts []*genai.Part
	for i, img := range referenceImages {
		if len(img) == 0 {
			fmt.Println("Reference image empty at index:", i)
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "image/png",
				Data:     img,
			},
		})
	}

	fullPrompt := prompt + ". " + aspectPhrase(aspect)
	if sizeHint != "" {
		fullPrompt += ", " + sizeHint
	}
	parts = append(parts, &genai.Part{Text: fullPrompt})

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 50000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `You are a production artwork generator for printed goods. Output exactly one high-resolution image matching the prompt. No watermarks, no borders, no mockup context unless the prompt asks for one. Keep any referenced person or pet visually identical to the provided reference images.`},
			},
		},
	})

	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	inputTokenCount := result.UsageMetadata.PromptTokenCount
	thoughtsTokenCount := result.UsageMetadata.ThoughtsTokenCount
	outputTokenCount := result.UsageMetadata.CandidatesTokenCount
	totalTokenCount := result.UsageMetadata.TotalTokenCount
	fmt.Println("Input token count:", inputTokenCount)
	fmt.Println("Output token count:", outputTokenCount)
	fmt.Println("Total token count:", totalTokenCount)

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	fmt.Println("Number of candidates received:", len(result.Candidates))
	llmResponseImagesBytes, err := GetAllInlineImages(result)
	if err != nil {
		fmt.Println("Error getting candidate images: ", err)
		return nil, fmt.Errorf("error getting candidate images: %v", err)
	}
	fmt.Println("Number of images extracted:", len(llmResponseImagesBytes))

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return &LLMResponse{
		Response:           llmResponseText.Text,
		Images:             llmResponseImagesBytes,
		Thoughts:           llmResponseText.Thoughts,
		InputTokenCount:    inputTokenCount,
		ThoughtsTokenCount: thoughtsTokenCount,
		OutputTokenCount:   outputTokenCount,
		TotalTokenCount:    totalTokenCount,
		IsTest:             false,
	}, nil
}

// RewritePrompt asks a text model for a policy-compliant paraphrase of a
// rejected prompt. Used once per job before giving up on the original idea.
func (g GoogleStudioLLM) RewritePrompt(prompt string) (string, error) {
	system := `You rewrite image generation prompts that were rejected by a content policy filter. Keep the creative intent, subject and style, remove or soften anything that could read as violent, sexual, hateful or otherwise unsafe. Return only the rewritten prompt, no commentary.`

	resp, err := g.Complete(system, []ChatTurn{{Role: "user", Content: prompt}}, Flash25)
	if err != nil {
		return "", err
	}
	rewritten := strings.TrimSpace(resp.Response)
	if rewritten == "" {
		return "", fmt.Errorf("empty rewrite response")
	}
	return rewritten, nil
}
