package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscalation(t *testing.T) {
	body, err := RenderEscalation(EscalationMailParams{
		EventTitle:           "Operating permit renewal",
		EventID:              "evt-1",
		EventType:            "permit_renewal",
		FacilityID:           "fac-north",
		DueDate:              "2026-03-01",
		DaysOverdue:          10,
		Level:                3,
		ChainName:            "Permit renewals",
		AssigneeName:         "Dana",
		PreviousAssigneeName: "Femi",
		URL:                  "https://escalation.example.com/events/evt-1",
		BrandingName:         "ComplianceOps",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "level 3")
	assert.Contains(t, body, "Operating permit renewal")
	assert.Contains(t, body, "fac-north")
	assert.Contains(t, body, "Femi")
	assert.Contains(t, body, "ComplianceOps")
	assert.Contains(t, body, "https://escalation.example.com/events/evt-1")
}

func TestRenderEscalationDefaults(t *testing.T) {
	body, err := RenderEscalation(EscalationMailParams{
		EventTitle:  "Inspection follow-up",
		EventID:     "evt-2",
		EventType:   "inspection",
		DueDate:     "2026-03-01",
		DaysOverdue: 1,
		Level:       1,
		ChainName:   "Inspections",
	})
	require.NoError(t, err)

	// Branding and greeting fall back when unset; facility row is omitted.
	assert.Contains(t, body, "Escalation Engine")
	assert.Contains(t, body, "Hello there")
	assert.NotContains(t, body, "Facility")
	assert.Contains(t, body, "day overdue")
	assert.NotContains(t, body, "days overdue")
}

func TestRenderResolved(t *testing.T) {
	body, err := RenderResolved(ResolvedMailParams{
		EventTitle:      "Operating permit renewal",
		EventID:         "evt-1",
		ResolvedBy:      "Dana",
		ResolutionNotes: "Permit renewed, confirmation filed.",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "resolved")
	assert.Contains(t, body, "Dana")
	assert.Contains(t, body, "Permit renewed, confirmation filed.")
}

func TestRenderEscalationEscapesHTML(t *testing.T) {
	body, err := RenderEscalation(EscalationMailParams{
		EventTitle:  "<script>alert(1)</script>",
		EventID:     "evt-3",
		DueDate:     "2026-03-01",
		DaysOverdue: 2,
		Level:       1,
		ChainName:   "Inspections",
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(body, "<script>alert(1)</script>"))
}
