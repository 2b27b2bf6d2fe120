// Package stats aggregates published exam results into the summary
// figures institutions expose alongside an exam.
package stats

import (
	ledgercontracts "attest/contracts/ledger"
)

// PassScore is the minimum score counted as a pass.
const PassScore = 60

// Summary holds aggregate figures for one exam's results. Averages and
// rates are fixed-point values scaled by 100 so equality is exact:
// an AverageScore of 7250 reads as 72.50.
type Summary struct {
	TotalResults    int            `json:"totalResults"`
	AverageScore    int64          `json:"averageScore"`
	PassRate        int64          `json:"passRate"`
	HighestScore    int            `json:"highestScore"`
	LowestScore     int            `json:"lowestScore"`
	GradeCounts     map[string]int `json:"gradeCounts"`
	MostCommonGrade string         `json:"mostCommonGrade"`
}

// gradeOrder breaks frequency ties in favour of the better grade.
var gradeOrder = []ledgercontracts.Grade{
	ledgercontracts.GradeA,
	ledgercontracts.GradeB,
	ledgercontracts.GradeC,
	ledgercontracts.GradeD,
	ledgercontracts.GradeF,
}

// Summarize computes aggregate figures over a set of results. It
// returns nil when there are no results to aggregate.
func Summarize(results []ledgercontracts.ResultRecord) *Summary {
	if len(results) == 0 {
		return nil
	}

	s := &Summary{
		TotalResults: len(results),
		HighestScore: results[0].Score,
		LowestScore:  results[0].Score,
		GradeCounts:  make(map[string]int),
	}

	var sum, passed int64
	for _, r := range results {
		sum += int64(r.Score)
		if r.Score >= PassScore {
			passed++
		}
		if r.Score > s.HighestScore {
			s.HighestScore = r.Score
		}
		if r.Score < s.LowestScore {
			s.LowestScore = r.Score
		}
		s.GradeCounts[string(r.Grade)]++
	}

	n := int64(len(results))
	s.AverageScore = sum * 100 / n
	s.PassRate = passed * 100 * 100 / n

	best := -1
	for _, g := range gradeOrder {
		if c := s.GradeCounts[string(g)]; c > best {
			best = c
			s.MostCommonGrade = string(g)
		}
	}
	return s
}
