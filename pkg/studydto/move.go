package studydto

// MoveSummary describes the effect of one move entered at the cursor.
type MoveSummary struct {
	State        *StudyState
	SAN          string
	UCI          string
	NewVariation bool
	Reused       bool
	Outcome      string
}
