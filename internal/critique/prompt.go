package critique

import (
	"fmt"
	"strings"

	"github.com/kalambet/mavkus/internal/engine"
)

// Rubric criteria, in the order they are reported.
const (
	Relevance    = "rilevanza"
	Clarity      = "chiarezza"
	Completeness = "completezza"
	Accuracy     = "accuratezza"
	Utility      = "utilita"
)

// Criteria lists the rubric keys with the description shown to the critic.
var Criteria = []struct {
	Key         string
	Description string
}{
	{Relevance, "Rilevanza alla domanda"},
	{Clarity, "Chiarezza espositiva"},
	{Completeness, "Completezza informativa"},
	{Accuracy, "Accuratezza scientifica"},
	{Utility, "Utilità pratica"},
}

const criticSystemPrompt = "Sei un critico obiettivo e preciso."

// BuildPrompt constructs the critic chat messages for one exchange.
func BuildPrompt(userMessage, aiResponse string) []engine.Message {
	var sb strings.Builder
	sb.WriteString("Valuta questa risposta AI (1-10):\n\n")
	fmt.Fprintf(&sb, "DOMANDA: %s\nRISPOSTA: %s\n\nCriteri:\n", userMessage, aiResponse)
	for _, c := range Criteria {
		fmt.Fprintf(&sb, "- %s (%s)\n", c.Description, c.Key)
	}

	sb.WriteString("\nRispondi SOLO con un oggetto JSON in questo formato:\n")
	sb.WriteString(`{"scores": {`)
	for i, c := range Criteria {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `"%s": 1-10`, c.Key)
	}
	sb.WriteString(`}, "overall_score": 1-10, "strengths": ["..."], "weaknesses": ["..."], "improvement_suggestion": "...", "category": "..."}`)

	return []engine.Message{
		engine.SystemMessage(criticSystemPrompt),
		engine.UserMessage(sb.String()),
	}
}
