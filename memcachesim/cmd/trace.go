package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sarchlab/memcoherence/datarecording"
	"github.com/sarchlab/memcoherence/tracing"
	"github.com/spf13/cobra"
)

type traceFlags struct {
	kind    string
	slowest int
}

var traceOpts traceFlags

var traceCmd = &cobra.Command{
	Use:   "trace <recording>",
	Short: "Summarize the tasks of a recording made with run --record.",
	Long: "Summarize the tasks of a recording made with run --record. The " +
		"recording is named without the .sqlite3 extension.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := datarecording.NewReader(args[0])
		defer r.Close()

		return traceOpts.summarize(cmd.Context(), cmd.OutOrStdout(), r)
	},
}

func init() {
	traceCmd.Flags().StringVar(&traceOpts.kind, "kind",
		envString("trace-kind", tracing.KindReqIn),
		"kind of the tasks to summarize, all kinds if empty")
	traceCmd.Flags().IntVar(&traceOpts.slowest, "slowest",
		envInt("trace-slowest", 5), "number of the longest tasks to list")

	rootCmd.AddCommand(traceCmd)
}

type taskGroup struct {
	where, what string
	count       int
	total       float64
}

func (o traceFlags) params() datarecording.QueryParams {
	p := datarecording.QueryParams{}
	if o.kind != "" {
		p.Where = "Kind = ?"
		p.Args = []any{o.kind}
	}

	return p
}

func (o traceFlags) summarize(
	ctx context.Context,
	out io.Writer,
	r datarecording.DataReader,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.MapTable(tracing.TaskTable, tracing.TaskRecord{})

	rows, total, err := r.Query(ctx, tracing.TaskTable, o.params())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "tasks: %d\n", total)

	for _, g := range groupTasks(rows) {
		fmt.Fprintf(out, "%s %s: count %d, avg %.3e s\n",
			g.where, g.what, g.count, g.total/float64(g.count))
	}

	if o.slowest <= 0 {
		return nil
	}

	p := o.params()
	p.OrderBy = "EndTime - StartTime DESC"
	p.Limit = o.slowest

	rows, _, err = r.Query(ctx, tracing.TaskTable, p)
	if err != nil {
		return err
	}

	for _, row := range rows {
		t := row.(*tracing.TaskRecord)
		fmt.Fprintf(out, "slow %s %s %s: %.3e s\n",
			t.Location, t.What, t.ID, t.EndTime-t.StartTime)
	}

	return nil
}

func groupTasks(rows []any) []*taskGroup {
	groups := make(map[string]*taskGroup)

	for _, row := range rows {
		t := row.(*tracing.TaskRecord)
		key := t.Location + " " + t.What

		g, found := groups[key]
		if !found {
			g = &taskGroup{where: t.Location, what: t.What}
			groups[key] = g
		}

		g.count++
		g.total += t.EndTime - t.StartTime
	}

	list := make([]*taskGroup, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}

	sort.Slice(list, func(i, j int) bool {
		return strings.Compare(list[i].where+list[i].what,
			list[j].where+list[j].what) < 0
	})

	return list
}
