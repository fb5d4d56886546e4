// history prints the snapshot history as a terminal table, most recent
// first. Handy for checking the streak and ARR trend without the API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/formicag/ACEReportHub/internal/db"
	"github.com/formicag/ACEReportHub/internal/policy"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool, policy.Default())
	summaries, err := store.ListSnapshots(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Week", "Captured", "Open", "Stale", "Avg Age", "ARR", "WA", "RAPID", "Streak"})

	for _, s := range summaries {
		week := s.ReportWeekDate
		if week == "" {
			week = "-"
		}
		t.AppendRow(table.Row{
			s.ID, week, s.SnapshotDate.Format("2006-01-02 15:04"),
			s.TotalReportableOps, s.StaleOpsCount,
			fmt.Sprintf("%.1f", s.AvgDaysSinceUpdate),
			fmt.Sprintf("$%.2f", s.TotalARR),
			s.WellArchitectedCount, s.RapidPilotCount, s.ConsecutiveWeeksNoStale,
		})
	}
	t.Render()
}
