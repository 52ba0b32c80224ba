package cmd

import (
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the node's chain.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var blocks []database.Block
		if err := call(http.MethodGet, "/v1/blocks/list", nil, &blocks); err != nil {
			return err
		}
		return show(cmd, blocks)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the head of the node's chain.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var block database.Block
		if err := call(http.MethodGet, "/v1/blocks/latest", nil, &block); err != nil {
			return err
		}
		return show(cmd, block)
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine <data>",
	Short: "Ask the node to mine a block carrying the data.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			Data string `json:"data"`
		}{
			Data: args[0],
		}

		var block database.Block
		if err := call(http.MethodPost, "/v1/mining/block", req, &block); err != nil {
			return err
		}
		return show(cmd, block)
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(mineCmd)
}
