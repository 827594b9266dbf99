package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/shiba/datarecording"
	"github.com/sarchlab/shiba/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect recorded allocation traces.",
}

var traceSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize a trace per operation and per call site.",
	Run: func(cmd *cobra.Command, _ []string) {
		summarizeTrace(os.Stdout, traceDB(cmd))
	},
}

var traceDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List raw trace records, oldest first.",
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		op, _ := cmd.Flags().GetString("op")

		err := dumpTrace(os.Stdout, traceDB(cmd), limit, op)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceSummaryCmd)
	traceCmd.AddCommand(traceDumpCmd)

	traceDumpCmd.Flags().Int(
		"limit", 0, "Maximum number of records to list. Zero lists all.")
	traceDumpCmd.Flags().String(
		"op", "", "List only records of one operation, such as allocate.")
}

func summarizeTrace(w io.Writer, dbPath string) {
	reader := tracing.NewTraceReader(dbPath)
	defer reader.Close()

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "OP\tCOUNT\tBYTES")
	for _, s := range reader.Summary() {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Op, s.Count, s.Bytes)
	}

	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "FILE\tLINE\tALLOCATIONS\tBYTES")
	for _, s := range reader.ListSites() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n",
			s.File, s.Line, s.Allocations, s.Bytes)
	}

	tw.Flush()
}

func dumpTrace(w io.Writer, dbPath string, limit int, op string) error {
	reader := datarecording.NewReader(dbPath)
	defer reader.Close()

	reader.MapTable(tracing.TraceTableName, tracing.Record{})

	params := datarecording.QueryParams{
		OrderBy: "ID",
		Limit:   limit,
	}
	if op != "" {
		params.Where = "Op = ?"
		params.Args = []any{op}
	}

	records, total, err := reader.Query(
		context.Background(), tracing.TraceTableName, params)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tOP\tSIZE\tFILE\tLINE\tSERVING")
	for _, r := range records {
		rec := r.(*tracing.Record)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			rec.ID, rec.Op, rec.Size, rec.File, rec.Line, rec.Serving)
	}

	tw.Flush()

	if len(records) < total {
		fmt.Fprintf(w, "%d of %d records shown\n", len(records), total)
	}

	return nil
}
