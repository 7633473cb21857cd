package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"deposit-core/internal/provider"

	"github.com/spf13/cobra"
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "查询服务商托管资产",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		assets, err := provider.NewClient(cfg.Provider).GetAssets(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COIN_ID\tSYMBOL\tAVAILABLE")
		for _, a := range assets {
			fmt.Fprintf(w, "%d\t%s\t%s\n", a.CoinID, a.CoinSymbol, a.Available.String())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)
}
