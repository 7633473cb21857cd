package cmd

import (
	"fmt"

	"deposit-core/pkg/address"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "地址工具",
}

var addressValidateCmd = &cobra.Command{
	Use:   "validate <chain> <address>",
	Short: "校验提币地址格式 (ETH/BSC/... , BTC, TRX)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		testnet, _ := cmd.Flags().GetBool("testnet")
		params := &chaincfg.MainNetParams
		if testnet {
			params = &chaincfg.TestNet3Params
		}

		if err := address.NewValidator(params).Validate(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s address ok\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.AddCommand(addressValidateCmd)

	addressValidateCmd.Flags().Bool("testnet", false, "BTC 使用 testnet3 参数")
}
