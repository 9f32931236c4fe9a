package assistant

import (
	"strings"

	"github.com/heinrichuk/pmoai/internal/models"
)

const promptHeader = `You are a Project Management Assistant for UBS. You have access to information about project workstreams, milestones, risks, issues, and dependencies. Provide concise, helpful responses to questions about project status.

Project context:
`

// SystemPrompt describes the current workstream statuses to the model.
func SystemPrompt(workstreams []models.Workstream) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, ws := range workstreams {
		b.WriteString("- ")
		b.WriteString(ws.Name)
		b.WriteString(" workstream (status: ")
		b.WriteString(strings.ToUpper(string(ws.Status)))
		b.WriteString(")\n")
	}
	return b.String()
}
