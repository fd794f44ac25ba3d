package composer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/mavkus/internal/engine"
	"github.com/kalambet/mavkus/internal/profile"
)

// DefaultHistoryWindow is how many history messages are sent to the generalist.
const DefaultHistoryWindow = 10

// RoutingSummary is the slice of routing statistics shown in the system prompt.
type RoutingSummary struct {
	TotalQuestions     int
	RoutedToSpecialist int
	SuccessRate        float64
}

// Input is everything the composer needs for one turn.
type Input struct {
	Profile        profile.Profile
	SpecialistName string
	Specialty      string
	Routing        RoutingSummary

	// SpecialistAnswer is injected as an extra system message when non-empty.
	SpecialistAnswer string

	// History holds the conversation, the new user message last.
	History []engine.Message
}

// Composer assembles the generalist message list: system prompt, optional
// specialist consultation, then the most recent history window.
type Composer struct {
	HistoryWindow int
}

// New creates a Composer. If historyWindow <= 0, DefaultHistoryWindow is used.
func New(historyWindow int) *Composer {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Composer{HistoryWindow: historyWindow}
}

// Compose builds the message list for the generalist.
func (c *Composer) Compose(in Input) []engine.Message {
	history := in.History
	if len(history) > c.HistoryWindow {
		history = history[len(history)-c.HistoryWindow:]
	}

	msgs := make([]engine.Message, 0, len(history)+2)
	msgs = append(msgs, engine.SystemMessage(SystemPrompt(in)))
	if in.SpecialistAnswer != "" {
		msgs = append(msgs, engine.SystemMessage(SpecialistContext(in.SpecialistName, in.SpecialistAnswer)))
	}
	return append(msgs, history...)
}

// SystemPrompt renders the generalist system prompt for the current profile
// and routing statistics.
func SystemPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("Sei MAVKUS, un'AI intelligente con accesso a uno specialista scientifico.\n\n")

	sb.WriteString("PROFILO UTENTE:\n")
	sb.WriteString(profileJSON(in.Profile))
	sb.WriteString("\n\n")

	sb.WriteString("SPECIALISTA DISPONIBILE:\n")
	fmt.Fprintf(&sb, "- %s: %s\n\n", in.SpecialistName, in.Specialty)

	sb.WriteString("STATISTICHE ROUTING:\n")
	fmt.Fprintf(&sb, "- Domande totali: %d\n", in.Routing.TotalQuestions)
	fmt.Fprintf(&sb, "- Inviate allo specialista: %d\n", in.Routing.RoutedToSpecialist)
	fmt.Fprintf(&sb, "- Successo specialista: %.1f%%\n\n", in.Routing.SuccessRate)

	sb.WriteString("ISTRUZIONI:\n")
	fmt.Fprintf(&sb, "1. Adatta il tono allo stile dell'utente (%s)\n", in.Profile.Style)
	sb.WriteString("2. Se la domanda riguarda SCIENZE o MATEMATICA, consulta lo specialista\n")
	sb.WriteString("3. Per coding e conversazione, rispondi direttamente\n")
	sb.WriteString("4. Sii chiaro, utile e conciso")
	return sb.String()
}

// SpecialistContext wraps a specialist answer as generalist context.
func SpecialistContext(name, answer string) string {
	return fmt.Sprintf("CONSULENZA SCIENTIFICA da %s:\n\n%s\n\nUsa queste informazioni per rispondere all'utente.", name, answer)
}

func profileJSON(p profile.Profile) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return p.Summary()
	}
	return strings.TrimRight(buf.String(), "\n")
}
