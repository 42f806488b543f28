package domain

// Classification is the outcome of scoring a message against the rule set.
type Classification struct {
	Category             Category
	Priority             Priority
	Confidence           float64
	MatchedKeywords      []string
	AircraftRegistration *string
	IsEmergency          bool
	RuleName             string
	Reasoning            string
}
