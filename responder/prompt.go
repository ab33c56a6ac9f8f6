package responder

import (
	"fmt"
	"strings"
)

// InitialResponse is the greeting shown before any phrase is answered.
const InitialResponse = "Welcome to EchoPilot 👋"

// thinkingPlaceholder is pushed into the registry the moment a phrase
// is picked up, so observers see progress before the first delta lands.
const thinkingPlaceholder = "Thinking..."

// BuildPrompt assembles the single-turn generation prompt: the previous
// question, the latest speaker phrase, and the previous answer (or an
// explicit no-previous-response marker).
func BuildPrompt(previousQuestion, latestContent, previousAnswer string) string {
	transcript := fmt.Sprintf("Speaker: [%s]\n\n", previousQuestion)

	assistantContext := "\nNo previous response from me.\n"
	if previousAnswer != "" && previousAnswer != "None" {
		assistantContext = fmt.Sprintf("\nMy last response:\n[%s]\n", previousAnswer)
	}

	return fmt.Sprintf(`
Below is a transcription of the conversation with potential inaccuracies. The records are ordered from the most recent to the oldest:

%s
%s
The latest speech from the speaker (may not be completely accurate):
[%s]

Instructions:
1. The above records are ordered chronologically from newest to oldest.
2. IMPORTANT: If I have not responded before (no previous response), I should provide a response now.
3. If the latest speech is semantically similar to the previous records AND my last response already addressed the same type of request (like number confirmation, registration questions, etc.), return 'None'.
4. Ensure your response maintains the current conversation context.
`, transcript, assistantContext, latestContent)
}

// extractStreamingPayload pulls the answer text out of a partially
// accumulated stream. The model wraps its reply in square brackets;
// while the stream is open the closing bracket may not have arrived
// yet, in which case everything after the opening bracket is used.
func extractStreamingPayload(accumulated string) string {
	start := strings.Index(accumulated, "[")
	if start < 0 {
		return accumulated
	}
	rest := accumulated[start+1:]
	if end := strings.Index(rest, "]"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// extractFinalPayload pulls the answer text from the completed stream.
// A malformed payload (no closing bracket) falls back to the full
// accumulated text rather than failing.
func extractFinalPayload(accumulated string) string {
	start := strings.Index(accumulated, "[")
	if start < 0 {
		return accumulated
	}
	rest := accumulated[start+1:]
	if end := strings.Index(rest, "]"); end >= 0 {
		return rest[:end]
	}
	return accumulated
}
