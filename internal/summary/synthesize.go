package summary

import (
	"fmt"
	"strings"
)

// Kind is the template family picked for an instruction.
type Kind string

const (
	KindActionItems Kind = "action_items"
	KindExecutive   Kind = "executive"
	KindGeneric     Kind = "generic"
)

// WordCount splits on single spaces only: "a b  c" is 4 and "" is 1.
func WordCount(text string) int {
	return len(strings.Split(text, " "))
}

// Classify matches keywords case-insensitively; "action" wins over "executive".
func Classify(instruction string) Kind {
	lower := strings.ToLower(instruction)
	switch {
	case strings.Contains(lower, "action"):
		return KindActionItems
	case strings.Contains(lower, "executive"):
		return KindExecutive
	default:
		return KindGeneric
	}
}

// Synthesize renders the markdown summary for a document and instruction.
// It is deterministic and depends on the document only through its word count.
func Synthesize(documentText, instruction string) string {
	words := WordCount(documentText)
	switch Classify(instruction) {
	case KindActionItems:
		return fmt.Sprintf(actionItemsTemplate, words)
	case KindExecutive:
		return fmt.Sprintf(executiveTemplate, words)
	default:
		return fmt.Sprintf(genericTemplate, words, instruction)
	}
}

const actionItemsTemplate = `# Action Items Summary

Based on the uploaded transcript (%d words), here are the key action items:

## Immediate Actions Required
• **Project Timeline Review** - Team lead to update project milestones by Friday
• **Budget Allocation** - Finance team to review and approve additional funding request
• **Client Communication** - Schedule follow-up meeting with stakeholders next week

## Medium-term Goals
• Implement new workflow processes discussed in the meeting
• Conduct market research for Q2 planning
• Update team training materials based on recent feedback

## Follow-up Items
• Document decisions made and distribute to all attendees
• Set up recurring check-ins for project status updates
• Review and update risk management protocols

**Next Meeting:** Scheduled for next Tuesday at 2 PM EST`

const executiveTemplate = `# Executive Summary

## Key Highlights
This %d-word transcript contains strategic discussions and important business decisions that require executive attention.

## Main Topics Covered
• **Strategic Planning** - Long-term vision and quarterly objectives discussed
• **Financial Performance** - Revenue targets and budget allocations reviewed
• **Team Updates** - Personnel changes and resource requirements outlined
• **Market Opportunities** - New business prospects and competitive positioning

## Critical Decisions Made
1. Approved expansion into new market segments
2. Increased investment in technology infrastructure
3. Restructured reporting hierarchy for better efficiency

## Recommendations
• Immediate action required on budget approvals
• Consider additional staffing for upcoming projects
• Schedule follow-up meetings with department heads

**Impact Level:** High - Requires immediate executive review and approval`

const genericTemplate = `# Transcript Summary

## Overview
This document summarizes a %d-word transcript based on your custom instructions: "%s"

## Key Points Discussed
• **Main Topics:** Strategic planning, team coordination, and project updates
• **Participants:** Multiple stakeholders across different departments
• **Duration:** Approximately 45-60 minutes of discussion
• **Outcome:** Clear action items and next steps established

## Important Highlights
The conversation covered several critical business areas including operational efficiency, team collaboration, and strategic initiatives. Key decisions were made regarding resource allocation and timeline adjustments.

## Next Steps
1. Distribute summary to all participants
2. Schedule follow-up meetings as needed
3. Track progress on assigned action items
4. Review and update project timelines

## Additional Notes
All participants agreed on the proposed changes and committed to the established deadlines. Regular check-ins will be scheduled to monitor progress and address any emerging issues.`
