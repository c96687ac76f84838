package domain

import "strings"

// Level is the judged portion size of a meal photo.
type Level string

const (
	LevelLight  Level = "light"
	LevelNormal Level = "normal"
	LevelHeavy  Level = "heavy"
)

// FallbackLevel is returned whenever a photo cannot be classified.
const FallbackLevel = LevelNormal

// Levels lists every valid classification.
var Levels = []Level{LevelLight, LevelNormal, LevelHeavy}

// ParseLevel matches raw against the three levels, ignoring surrounding
// whitespace and case. Anything else reports false.
func ParseLevel(raw string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(raw))); l {
	case LevelLight, LevelNormal, LevelHeavy:
		return l, true
	default:
		return "", false
	}
}

func (l Level) String() string { return string(l) }
