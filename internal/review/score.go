package review

import "math"

// maxCategoryTotal is the highest possible sum across the six
// categories.
const maxCategoryTotal = 10 * 6

// AggregateScore rescales the six 0-10 category scores onto 0-100:
// round(sum / 60 * 100). Input is assumed validated; the function is
// total over that domain.
func AggregateScore(categories []CategoryScore) int {
	sum := 0
	for _, c := range categories {
		sum += c.Score
	}
	return int(math.Round(float64(sum) / maxCategoryTotal * 100))
}

// GradeFor maps an overall score onto its letter grade. The bands are
// closed and cover every integer 0 through 100.
func GradeFor(overall int) Grade {
	switch {
	case overall >= 90:
		return GradeA
	case overall >= 80:
		return GradeB
	case overall >= 70:
		return GradeC
	case overall >= 60:
		return GradeD
	default:
		return GradeF
	}
}
