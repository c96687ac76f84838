package vision

import (
	"context"
)

// SystemPrompt defines the three portion categories and the one-word answer
// format shared by all vision adapters.
const SystemPrompt = `You are an expert at judging how much food is in a meal.
Look at the photo and classify the amount of food into exactly one of these categories:
- light: a light meal (small portion, salad-centric, light snack)
- normal: a standard amount (a typical single-meal portion)
- heavy: a substantial meal (large portion, high-volume meal)

Answer with exactly one word: "light", "normal" or "heavy".
Do not add explanations or any other text.`

// UserPrompt accompanies the image in the user turn.
const UserPrompt = "Judge the amount of food in this meal photo."

// MaxOutputTokens caps the model reply; the expected answer is a single word.
const MaxOutputTokens = 10

// Classifier sends an image reference to a vision model and returns the
// model's raw text answer. Validation of the answer is left to the caller.
type Classifier interface {
	Classify(ctx context.Context, apiKey, imageURL string) (string, error)
}
