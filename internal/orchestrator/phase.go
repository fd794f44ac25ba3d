package orchestrator

// Phase is a step of the turn pipeline.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseRouting
	PhaseConsulting
	PhaseGenerating
	PhaseCritiquing
	PhasePersisting
)

var phaseNames = [...]string{
	PhaseIdle:       "idle",
	PhaseAnalyzing:  "analyzing",
	PhaseRouting:    "routing",
	PhaseConsulting: "consulting",
	PhaseGenerating: "generating",
	PhaseCritiquing: "critiquing",
	PhasePersisting: "persisting",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
