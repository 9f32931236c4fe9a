// Package seed provides the sample portfolio loaded at process start.
package seed

import (
	"fmt"
	"time"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/store"
)

const day = 24 * time.Hour

// Bundle returns the sample portfolio with timestamps relative to now.
func Bundle(now time.Time) store.State {
	workstreams := []models.Workstream{
		{
			ID:          "ws-1",
			Name:        "Data Migration",
			Description: "Migrate legacy data to new platform",
			Status:      models.StatusAmber,
			Lead:        "Jane Smith",
			LastUpdated: now.Add(-2 * day),
		},
		{
			ID:          "ws-2",
			Name:        "User Interface",
			Description: "Develop new user interface components",
			Status:      models.StatusGreen,
			Lead:        "John Davis",
			LastUpdated: now,
		},
		{
			ID:          "ws-3",
			Name:        "API Development",
			Description: "Create new REST APIs for integration",
			Status:      models.StatusRed,
			Lead:        "Robert Johnson",
			LastUpdated: now.Add(-1 * day),
		},
		{
			ID:          "ws-4",
			Name:        "Testing",
			Description: "Quality assurance and testing",
			Status:      models.StatusGreen,
			Lead:        "Sarah Wilson",
			LastUpdated: now,
		},
	}

	milestones := []models.Milestone{
		{
			ID:           "m-1",
			WorkstreamID: "ws-1",
			Title:        "Schema Migration",
			Description:  "Complete the database schema migration",
			DueDate:      now.Add(10 * day),
			Status:       models.MilestonePending,
		},
		{
			ID:           "m-2",
			WorkstreamID: "ws-2",
			Title:        "UI Prototype",
			Description:  "Complete the UI prototype for review",
			DueDate:      now.Add(5 * day),
			Status:       models.MilestoneCompleted,
		},
	}

	risks := []models.Risk{
		{
			ID:             "r-1",
			WorkstreamID:   "ws-1",
			Title:          "Data Corruption",
			Description:    "Risk of data corruption during migration",
			Impact:         "high",
			Likelihood:     "medium",
			MitigationPlan: "Implement backup strategy and rollback plan",
			Status:         models.RiskOpen,
		},
		{
			ID:             "r-2",
			WorkstreamID:   "ws-3",
			Title:          "API Security",
			Description:    "Security vulnerabilities in API",
			Impact:         "high",
			Likelihood:     "low",
			MitigationPlan: "Security review and penetration testing",
			Status:         models.RiskMitigated,
		},
	}

	issues := []models.Issue{
		{
			ID:           "i-1",
			WorkstreamID: "ws-3",
			Title:        "Performance Issues",
			Description:  "API response times are exceeding SLA",
			Severity:     "high",
			Status:       models.IssueOpen,
			AssignedTo:   "Robert Johnson",
		},
		{
			ID:           "i-2",
			WorkstreamID: "ws-2",
			Title:        "Browser Compatibility",
			Description:  "UI not rendering correctly in Safari",
			Severity:     "medium",
			Status:       models.IssueInProgress,
			AssignedTo:   "John Davis",
		},
	}

	dependencies := []models.Dependency{
		{
			ID:                 "d-1",
			SourceWorkstreamID: "ws-1",
			TargetWorkstreamID: "ws-2",
			Description:        "Data migration must be complete before UI can connect",
			Status:             models.DependencyPending,
		},
		{
			ID:                 "d-2",
			SourceWorkstreamID: "ws-3",
			TargetWorkstreamID: "ws-4",
			Description:        "APIs must be developed before testing can begin",
			Status:             models.DependencyPending,
		},
		{
			ID:                 "d-3",
			SourceWorkstreamID: "ws-2",
			TargetWorkstreamID: "ws-4",
			Description:        "UI must be complete before end-to-end testing",
			Status:             models.DependencyMet,
		},
	}

	var sentiments []models.SentimentSample
	for _, ws := range workstreams {
		sentiments = append(sentiments, trend(ws.ID, now)...)
	}

	return store.State{
		Workstreams:  workstreams,
		Milestones:   milestones,
		Risks:        risks,
		Issues:       issues,
		Dependencies: dependencies,
		Sentiments:   sentiments,
	}
}

// trend is the three-point sentiment history every sample workstream shares.
func trend(workstreamID string, now time.Time) []models.SentimentSample {
	return []models.SentimentSample{
		{
			ID:           fmt.Sprintf("sent-%s-1", workstreamID),
			WorkstreamID: workstreamID,
			Date:         now.Add(-14 * day),
			Score:        -0.3,
			Keywords:     []string{"delayed", "risk", "issues", "vendor"},
			Summary:      "The team is facing challenges with vendor integration.",
		},
		{
			ID:           fmt.Sprintf("sent-%s-2", workstreamID),
			WorkstreamID: workstreamID,
			Date:         now.Add(-7 * day),
			Score:        0.1,
			Keywords:     []string{"progress", "issues", "pending", "mitigation"},
			Summary:      "Some progress made but issues remain with the API integration.",
		},
		{
			ID:           fmt.Sprintf("sent-%s-3", workstreamID),
			WorkstreamID: workstreamID,
			Date:         now,
			Score:        0.6,
			Keywords:     []string{"resolved", "completed", "delivery", "milestone"},
			Summary:      "Key issues resolved and the team completed the first milestone.",
		},
	}
}
