package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/omixlab/fuseomics"
	runfs "github.com/omixlab/fuseomics/service/dao/run/fs"
)

func runsCmd() *cobra.Command {
	var store string

	c := &cobra.Command{
		Use:   "runs",
		Short: "List persisted run records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runDAO, err := runfs.New(store)
			if err != nil {
				return err
			}
			srv := fuseomics.New(fuseomics.WithRunDAO(runDAO))
			records, err := srv.Runtime().Records(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(records, func(i, j int) bool {
				return records[i].StartedAt.Before(records[j].StartedAt)
			})
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tSTARTED\tEPOCHS\tVAL LOSS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\n",
					r.ID, r.Model, r.StartedAt.Format("2006-01-02 15:04:05"), r.Epochs, r.ValLoss)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&store, "store", "", "Directory holding persisted run records")
	_ = c.MarkFlagRequired("store")
	return c
}
