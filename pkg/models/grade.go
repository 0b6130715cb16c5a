package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidGrade is returned when a grade value is outside AGAIN..EASY.
var ErrInvalidGrade = errors.New("invalid grade")

// Grade is the recall quality reported by the reviewer
type Grade int

const (
	GradeAgain Grade = iota + 1 // Complete failure to recall
	GradeHard                   // Recalled with serious difficulty
	GradeGood                   // Recalled with some effort
	GradeEasy                   // Recalled without hesitation
)

var (
	gradeNames  = [...]string{GradeAgain: "AGAIN", GradeHard: "HARD", GradeGood: "GOOD", GradeEasy: "EASY"}
	gradeByName = map[string]Grade{
		"AGAIN": GradeAgain,
		"HARD":  GradeHard,
		"GOOD":  GradeGood,
		"EASY":  GradeEasy,
	}
)

// Grades lists every valid grade in ascending order.
func Grades() []Grade {
	return []Grade{GradeAgain, GradeHard, GradeGood, GradeEasy}
}

// ParseGrade converts "AGAIN", "HARD", "GOOD" or "EASY" into a Grade.
func ParseGrade(s string) (Grade, error) {
	g, ok := gradeByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
	}
	return g, nil
}

// IsValid reports whether g is one of the four known grades.
func (g Grade) IsValid() bool {
	return g >= GradeAgain && g <= GradeEasy
}

// Quality returns the SM-2 response quality for the grade.
func (g Grade) Quality() int {
	return int(g)
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalJSON serializes the grade as its name.
func (g Grade) MarshalJSON() ([]byte, error) {
	text, err := g.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON expects a JSON string such as "GOOD".
func (g *Grade) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGrade, data)
	}
	return g.UnmarshalText([]byte(s))
}

// Value stores the grade by name so review history stays readable in SQL.
func (g Grade) Value() (driver.Value, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return gradeNames[g], nil
}

// Scan implements sql.Scanner.
func (g *Grade) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return g.UnmarshalText([]byte(v))
	case []byte:
		return g.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidGrade, src)
	}
}
