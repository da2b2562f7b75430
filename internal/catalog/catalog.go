// Package catalog describes the static stage layout: five themed stages of
// ordinary levels, each capped by an ascension test that gates the next stage.
package catalog

import "cybersensei-service/internal/domain"

var stages = []domain.Stage{
	{Title: "Fundamentos (Basico)", MinLevel: 1, MaxLevel: 8, TestLevel: 9, Style: "basico"},
	{Title: "Amenazas (Intermedio)", MinLevel: 10, MaxLevel: 17, TestLevel: 18, Style: "intermedio"},
	{Title: "Defensa (Dificil)", MinLevel: 19, MaxLevel: 26, TestLevel: 27, Style: "dificil"},
	{Title: "Hacking Etico (Experto)", MinLevel: 28, MaxLevel: 35, TestLevel: 36, Style: "experto"},
	{Title: "Ciberseguridad Total (Master)", MinLevel: 37, MaxLevel: 44, TestLevel: 45, Style: "master"},
}

// Stages returns the stages in ascending level order.
func Stages() []domain.Stage {
	out := make([]domain.Stage, len(stages))
	copy(out, stages)
	return out
}

// StageFor returns the stage containing level, matching either the ordinary
// range or the test level.
func StageFor(level int) (domain.Stage, bool) {
	for _, s := range stages {
		if (level >= s.MinLevel && level <= s.MaxLevel) || level == s.TestLevel {
			return s, true
		}
	}
	return domain.Stage{}, false
}

// NextTarget computes the level that follows completed. Completing the last
// ordinary level of a stage targets its test level; completing a test level
// targets the next stage's first level; anything else targets completed+1.
func NextTarget(completed int) int {
	for i, s := range stages {
		if completed == s.MaxLevel {
			return s.TestLevel
		}
		if completed == s.TestLevel {
			if i+1 < len(stages) {
				return stages[i+1].MinLevel
			}
			// Past the final test there is nothing to target; the mission
			// lookup at this level will report path completion.
			return s.TestLevel + 1
		}
	}
	return completed + 1
}
