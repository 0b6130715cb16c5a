package models

// GradeStats is a lifetime tally of review records per grade.
type GradeStats struct {
	Again int `json:"AGAIN"`
	Hard  int `json:"HARD"`
	Good  int `json:"GOOD"`
	Easy  int `json:"EASY"`
}

// NewGradeStats builds a tally from per-grade counts; missing grades stay zero.
func NewGradeStats(counts map[Grade]int) GradeStats {
	return GradeStats{
		Again: counts[GradeAgain],
		Hard:  counts[GradeHard],
		Good:  counts[GradeGood],
		Easy:  counts[GradeEasy],
	}
}

// Total returns the number of reviews across all grades.
func (g GradeStats) Total() int {
	return g.Again + g.Hard + g.Good + g.Easy
}

// ReviewStats summarizes a user's cards, optionally scoped to one deck
type ReviewStats struct {
	TotalCards   int        `json:"totalCards"`
	NewCards     int        `json:"newCards"`
	DueCards     int        `json:"dueCards"`
	OverdueCards int        `json:"overdueCards"`
	GradeStats   GradeStats `json:"gradeStats"`
}

// Pending is an upper bound on cards a session could pick up right now; a
// new card that is also due today is counted twice.
func (s ReviewStats) Pending() int {
	return s.NewCards + s.DueCards + s.OverdueCards
}
