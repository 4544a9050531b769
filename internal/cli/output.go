package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cognicore/textscore/pkg/textscore"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

func reportTable(w io.Writer, rep *textscore.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROWS\tMEAN PSYCH\tMEAN MUSIC\tRUN")
	fmt.Fprintln(tw, "----\t----------\t----------\t---")
	fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
		rep.Summary.Count,
		formatMean(rep.Summary.MeanPsych),
		formatMean(rep.Summary.MeanMusic),
		orDash(rep.RunID),
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, a := range rep.Artifacts {
		fmt.Fprintf(w, "Wrote %s: %s\n", a.Kind, a.Path)
	}
	return nil
}

func runsTable(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tROWS\tINPUT\tPLUGINS")
	fmt.Fprintln(tw, "---\t-------\t----\t-----\t-------")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format("Jan 02, 2006 15:04"),
			r.Rows,
			truncate(r.Input, 40),
			orDash(strings.Join(r.Plugins, ",")),
		)
	}

	return tw.Flush()
}

func formatMean(m *float64) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatFloat(*m, 'f', 3, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate keeps the tail of long paths, where the file name is.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}
