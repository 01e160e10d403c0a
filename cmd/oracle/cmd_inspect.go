package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/config"
)

var (
	catalogCategory string
	historyLimit    int
)

// #region catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List processing units",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRIORITY\tSAFETY\tPARAMS")
		for _, d := range cat.All() {
			if catalogCategory != "" && d.Category != catalog.Category(catalogCategory) {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%d\n", d.ID, d.Name, d.Category, d.ChainPriority, d.Safety, d.ParamCount())
		}
		return w.Flush()
	},
}

// #endregion catalog

// #region history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent resolutions from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ledger.Recent(historyLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tORIGIN\tCONF\tSAFE\tUNITS\tVIBE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%t\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Source, e.Origin, e.Confidence, e.IsSafe, e.Units, e.Vibe)
		}
		return w.Flush()
	},
}

// #endregion history

// #region cache
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persisted cache and learned chains",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print persisted entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		stats := struct {
			Backend   string `json:"backend"`
			Persisted *int   `json:"persisted_entries,omitempty"`
			Learned   int    `json:"learned_chains"`
			IndexSize int    `json:"index_size"`
		}{Backend: a.cfg.Cache.Backend, IndexSize: a.index.Len()}

		if a.cfg.Cache.Backend == config.CacheSQLite && a.sqlTier != nil {
			n, err := a.sqlTier.Count()
			if err != nil {
				return err
			}
			stats.Persisted = &n
		}
		stats.Learned, err = a.store.CountLearned()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), stats)
	},
}

// #endregion cache

func init() {
	catalogCmd.Flags().StringVar(&catalogCategory, "category", "", "only list units of this category")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "entries to show")
	cacheCmd.AddCommand(cacheStatsCmd)
}
