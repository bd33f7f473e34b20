package prompts

import "strings"

// ============================================================================
// Example punchlines (shown to the model as the quality bar)
// ============================================================================

// ExamplePunchlines are embedded into CaptionPrompt.
var ExamplePunchlines = []string{
	"I asked the gym why they had no stairs. They said they're a no-step program.",
	"My bed is like a magical place where I suddenly remember everything I was supposed to do.",
	"I'm not saying your coffee is weak, but it's currently applying for motivational seminars.",
	"Cats: proving that if you act like you own the place, everyone will assume you do.",
}

// ============================================================================
// Caption Prompt (Vision Language Model)
// ============================================================================

// CaptionPrompt is sent as the text part of every per-photo request.
// The model must answer with a JSON object holding "punchline" and "description".
var CaptionPrompt = buildCaptionPrompt()

func buildCaptionPrompt() string {
	quoted := make([]string, len(ExamplePunchlines))
	for i, p := range ExamplePunchlines {
		quoted[i] = `"` + p + `"`
	}
	return `For this photo, generate: 1) A VERY witty, hilarious punchline (just one short sentence - be clever, unexpected and truly funny) and 2) A separate humorous mini-story (2-3 sentences) related to what's happening in the image. DON'T just describe what's in the photo. Instead: Use wordplay, puns, or clever observations. Be absurd, exaggerated or unexpected. Consider sarcasm, irony or satirical angles. Channel comedy styles like Mitch Hedberg, Jerry Seinfeld, or Sarah Silverman. Format the response as a JSON object with "punchline" and "description" fields. Examples of GREAT punchlines: ` +
		strings.Join(quoted, " ") +
		` Full example: {"punchline": "My kitchen and I have reached a compromise: I won't cook, it won't catch fire.", "description": "The smoke alarm had started charging me rent since we spent so much time together. Yesterday, I caught it updating its resume with 'five years experience as a dinner critic'."}`
}
