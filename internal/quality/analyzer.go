// Package quality derives productivity, focus and dependency metrics
// from a session's interaction list. Analyze is a pure function: no
// side effects, and an empty session yields a neutral zero report.
package quality

import (
	"fmt"
	"time"

	"github.com/codetrail/codetrail/internal/models"
)

const (
	interactionWeight = 2.0
	interactionCapped = 40.0 // max contribution from raw count
	diversityWeight   = 8.0
	fileBreadthWeight = 4.0
	fileBreadthCap    = 20.0 // rewards moderate breadth, not churn
	rateWeight        = 5.0
	rateCap           = 25.0

	highQualityThreshold   = 75.0
	mediumQualityThreshold = 50.0
)

// Analyze computes the quality report for a session, finalized or in
// progress.
func Analyze(session *models.DevelopmentSession) models.QualityReport {
	if session == nil || len(session.Interactions) == 0 {
		return models.QualityReport{AIDependency: "low", Overall: "low"}
	}

	interactions := session.Interactions
	distinctFiles := session.DistinctFiles()

	productivity := productivityScore(session, distinctFiles)
	focus := focusScore(len(interactions), distinctFiles)
	dependency := dependencyEstimate(interactions)

	report := models.QualityReport{
		Productivity:  productivity,
		Focus:         focus,
		AIDependency:  dependency,
		Overall:       overallLabel((productivity + focus) / 2),
		Interactions:  len(interactions),
		DistinctFiles: distinctFiles,
	}
	report.Recommendations = recommendations(report)
	return report
}

func productivityScore(session *models.DevelopmentSession, distinctFiles int) float64 {
	interactions := session.Interactions

	score := float64(len(interactions)) * interactionWeight
	if score > interactionCapped {
		score = interactionCapped
	}

	types := make(map[models.InteractionType]struct{})
	for _, interaction := range interactions {
		types[interaction.Type] = struct{}{}
	}
	score += float64(len(types)) * diversityWeight

	breadth := float64(distinctFiles) * fileBreadthWeight
	if breadth > fileBreadthCap {
		breadth = fileBreadthCap
	}
	score += breadth

	score += rateContribution(session)

	if score > 100 {
		score = 100
	}
	return score
}

func rateContribution(session *models.DevelopmentSession) float64 {
	end := time.Now()
	if session.EndTime != nil {
		end = *session.EndTime
	}
	elapsed := end.Sub(session.StartTime)
	if elapsed < time.Minute {
		elapsed = time.Minute
	}
	perHour := float64(len(session.Interactions)) / elapsed.Hours()
	contribution := perHour * rateWeight / 10
	if contribution > rateCap {
		contribution = rateCap
	}
	return contribution
}

// focusScore buckets the interactions-per-file ratio: fewer files per
// unit of activity means higher focus.
func focusScore(interactionCount, distinctFiles int) float64 {
	if distinctFiles == 0 {
		distinctFiles = 1
	}
	ratio := float64(interactionCount) / float64(distinctFiles)
	switch {
	case ratio >= 10:
		return 95
	case ratio >= 5:
		return 80
	case ratio >= 3:
		return 65
	case ratio >= 2:
		return 50
	case ratio >= 1:
		return 35
	default:
		return 20
	}
}

// dependencyEstimate is a monotonic step function of the average
// response length: longer generated responses imply heavier reliance.
func dependencyEstimate(interactions []models.Interaction) string {
	total := 0
	for _, interaction := range interactions {
		total += len(interaction.Response)
	}
	average := float64(total) / float64(len(interactions))
	switch {
	case average > 500:
		return "high"
	case average > 150:
		return "medium"
	default:
		return "low"
	}
}

func overallLabel(mean float64) string {
	switch {
	case mean >= highQualityThreshold:
		return "high"
	case mean >= mediumQualityThreshold:
		return "medium"
	default:
		return "low"
	}
}

func recommendations(report models.QualityReport) []string {
	var out []string
	if report.Focus < 50 {
		out = append(out, fmt.Sprintf("Work is spread across %d files; consider reducing concurrent files to stay focused", report.DistinctFiles))
	}
	if report.Productivity < 40 {
		out = append(out, "Low assisted activity this session; consider breaking work into smaller prompts")
	}
	if report.AIDependency == "high" {
		out = append(out, "Long generated responses dominate; review output carefully before committing")
	}
	return out
}
