package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/escalation"
)

func WriteChainTable(w io.Writer, chains []escalation.ChainDefinition) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tEVENT_TYPES\tFACILITIES\tSTEPS")
	for _, c := range chains {
		types := make([]string, 0, len(c.AppliesToEventTypes))
		for _, et := range c.AppliesToEventTypes {
			types = append(types, string(et))
		}
		facilities := "*"
		if len(c.AppliesToFacilityIDs) > 0 {
			facilities = strings.Join(c.AppliesToFacilityIDs, ",")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%d\n", c.ID, c.Name, c.IsActive, strings.Join(types, ","), facilities, len(c.Steps))
	}
	_ = tw.Flush()
}

func WriteEventTable(w io.Writer, events []escalation.DeadlineEvent) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tFACILITY\tDUE\tSTATUS\tTITLE")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.EventType, e.FacilityID, formatTime(e.DueDate), e.Status, e.Title)
	}
	_ = tw.Flush()
}

func WriteInstanceTable(w io.Writer, instances []escalation.Instance) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EVENT\tCHAIN\tSTATUS\tLEVEL\tASSIGNEE\tSTARTED\tLAST_ESCALATED")
	for _, inst := range instances {
		assignee := "-"
		if inst.CurrentAssignee != nil {
			assignee = inst.CurrentAssignee.Name
		}
		lastEscalated := "-"
		if inst.LastEscalatedAt != nil {
			lastEscalated = formatTime(*inst.LastEscalatedAt)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			inst.EventID, inst.ChainID, formatStatus(inst.Status), inst.CurrentLevel, assignee, formatTime(inst.StartedAt), lastEscalated)
	}
	_ = tw.Flush()
}

func WriteAuditTable(w io.Writer, entries []audit.Entry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SEQ\tTIME\tACTION\tLEVEL\tBY\tDETAILS")
	for _, e := range entries {
		by := e.PerformedBy
		if by == "" {
			by = "system"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, formatTime(e.Timestamp), e.Action, formatLevelChange(e.PreviousLevel, e.NewLevel), by, e.Details)
	}
	_ = tw.Flush()
}

// formatStatus colors the statuses an operator scans for: stuck
// escalations in red, snoozes in yellow, resolved in green.
func formatStatus(status escalation.Status) string {
	switch status {
	case escalation.StatusResolved:
		return color.New(color.FgGreen).Sprint(string(status))
	case escalation.StatusSnoozed:
		return color.New(color.FgYellow).Sprint(string(status))
	case escalation.StatusLevel3, escalation.StatusLevel4:
		return color.New(color.FgRed).Sprint(string(status))
	default:
		return string(status)
	}
}

func formatLevelChange(prev, next *int) string {
	if next == nil {
		return "-"
	}
	if prev == nil {
		return strconv.Itoa(*next)
	}
	return fmt.Sprintf("%d->%d", *prev, *next)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
