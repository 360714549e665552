package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/escalation"
)

func TestWriteObjectJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteObject(&buf, FormatJSON, map[string]string{"id": "chain-1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"id": "chain-1"`)
}

func TestWriteObjectUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteObject(&buf, Format("xml"), nil)
	require.Error(t, err)
}

func TestWriteChainTable(t *testing.T) {
	var buf bytes.Buffer
	WriteChainTable(&buf, []escalation.ChainDefinition{
		{
			ID:                  "chain-permits",
			Name:                "Permit renewals",
			IsActive:            true,
			AppliesToEventTypes: []escalation.EventType{"permit_renewal"},
			Steps:               []escalation.EscalationStep{{Level: 1}, {Level: 2}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "chain-permits")
	assert.Contains(t, out, "permit_renewal")
	// No facility restriction renders as a wildcard.
	assert.Contains(t, out, "*")
}

func TestWriteInstanceTable(t *testing.T) {
	color.NoColor = true
	started := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	WriteInstanceTable(&buf, []escalation.Instance{
		{
			EventID:         "evt-permit",
			ChainID:         "chain-permits",
			Status:          escalation.StatusLevel3,
			CurrentLevel:    3,
			CurrentAssignee: &escalation.AssigneeRef{ID: "u-director", Name: "Ines"},
			StartedAt:       started,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "evt-permit")
	assert.Contains(t, out, "level_3")
	assert.Contains(t, out, "Ines")
}

func TestWriteAuditTable(t *testing.T) {
	prev, next := 1, 2
	var buf bytes.Buffer
	WriteAuditTable(&buf, []audit.Entry{
		{Seq: 1, Action: audit.ActionEscalationStarted, NewLevel: &next, Timestamp: time.Now()},
		{Seq: 2, Action: audit.ActionLevelIncreased, PreviousLevel: &prev, NewLevel: &next, PerformedBy: "u-admin"},
	})
	out := buf.String()
	assert.Contains(t, out, "escalation_started")
	assert.Contains(t, out, "1->2")
	assert.Contains(t, out, "system")
	assert.Contains(t, out, "u-admin")
}
