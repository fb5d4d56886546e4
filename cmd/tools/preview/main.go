// preview processes a Partner Central CSV export locally and prints the
// hygiene stats plus the diff against the stored baseline, without touching
// the snapshot history. Usage: preview <export.csv>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/formicag/ACEReportHub/internal/compare"
	"github.com/formicag/ACEReportHub/internal/db"
	"github.com/formicag/ACEReportHub/internal/ingest"
	"github.com/formicag/ACEReportHub/internal/policy"
	"github.com/formicag/ACEReportHub/internal/stats"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: preview <export.csv>")
	}
	path := os.Args[1]

	f, err := os.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	rows, err := ingest.ReadCSV(f)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	pol := policy.Default()
	records := ingest.NormalizeRows(rows, pol, time.Now())

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool, pol)

	var prior *stats.PriorWeek
	latest, err := store.GetLatest(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if latest != nil {
		prior = &stats.PriorWeek{
			StaleOpsCount:           latest.Metrics.StaleOpsCount,
			ConsecutiveWeeksNoStale: latest.Metrics.ConsecutiveWeeksNoStale,
		}
	}

	m := stats.Compute(records, prior, pol)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total records", m.TotalAllOps},
		{"Open", m.TotalOpenOps},
		{"Reportable", m.TotalReportableOps},
		{"Excluded", m.TotalExcludedOps},
		{"Stale", m.StaleOpsCount},
		{"Avg days since update", fmt.Sprintf("%.1f", m.AvgDaysSinceUpdate)},
		{"Pipeline ARR", fmt.Sprintf("$%.2f", m.TotalARR)},
		{"Well-Architected", m.WellArchitectedCount},
		{"RAPID pilots", m.RapidPilotCount},
		{"Clean-weeks streak", m.ConsecutiveWeeksNoStale},
	})
	t.Render()

	engine := compare.NewEngine(store, pol)
	cmp, err := engine.CompareWithBaseline(ctx, records)
	if err != nil {
		log.Fatal(err)
	}

	if len(cmp.NewOps) > 0 {
		fmt.Println("\nNew opportunities:")
		nt := table.NewWriter()
		nt.SetOutputMirror(os.Stdout)
		nt.AppendHeader(table.Row{"ID", "Customer", "Status", "Stage", "Est. MRR"})
		for _, rec := range cmp.NewOps {
			nt.AppendRow(table.Row{rec.OpportunityID, rec.CustomerName, rec.Status, rec.Stage, fmt.Sprintf("$%.2f", rec.EstimatedRevenue)})
		}
		nt.Render()
	}

	if len(cmp.NoLongerOpen) > 0 {
		fmt.Println("\nNo longer open:")
		ct := table.NewWriter()
		ct.SetOutputMirror(os.Stdout)
		ct.AppendHeader(table.Row{"ID", "Customer", "Was", "Now"})
		for _, op := range cmp.NoLongerOpen {
			ct.AppendRow(table.Row{
				op.OpportunityID, op.CustomerName,
				op.PreviousStatus + " / " + op.PreviousStage,
				op.CurrentStatus + " / " + op.CurrentStage,
			})
		}
		ct.Render()
	}

	if len(cmp.StatusChanges) > 0 {
		fmt.Println("\nStatus changes:")
		st := table.NewWriter()
		st.SetOutputMirror(os.Stdout)
		st.AppendHeader(table.Row{"ID", "Customer", "Status", "Stage"})
		for _, ch := range cmp.StatusChanges {
			st.AppendRow(table.Row{
				ch.OpportunityID, ch.CustomerName,
				ch.OldStatus + " -> " + ch.NewStatus,
				ch.OldStage + " -> " + ch.NewStage,
			})
		}
		st.Render()
	}
}
