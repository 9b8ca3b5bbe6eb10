package types

// ConsultationPhase identifies a stage of a consultation dialogue.
// The set is open: dialogue annotation may introduce labels beyond the
// constants below, so values are carried through without validation.
type ConsultationPhase string

// Phases commonly assigned by dialogue annotation
const (
	PhaseIntroduction      ConsultationPhase = "introduction"
	PhaseFactFinding       ConsultationPhase = "fact_finding"
	PhaseNeedsAssessment   ConsultationPhase = "needs_assessment"
	PhaseRecommendation    ConsultationPhase = "recommendation"
	PhaseObjectionHandling ConsultationPhase = "objection_handling"
	PhaseClosing           ConsultationPhase = "closing"
)

// KnownConsultationPhases returns the well-known phases. Stored metadata
// may contain phases outside this list.
func KnownConsultationPhases() []ConsultationPhase {
	return []ConsultationPhase{
		PhaseIntroduction,
		PhaseFactFinding,
		PhaseNeedsAssessment,
		PhaseRecommendation,
		PhaseObjectionHandling,
		PhaseClosing,
	}
}

// String returns the string representation of the consultation phase
func (p ConsultationPhase) String() string {
	return string(p)
}
