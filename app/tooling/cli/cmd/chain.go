package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/spf13/cobra"
)

var powPolicy string

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a chain stored as a JSON array of blocks.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := database.ParsePoWPolicy(powPolicy)
		if err != nil {
			return err
		}

		blocks, err := readChain(args[0])
		if err != nil {
			return err
		}

		rules := database.Rules{PoW: policy}
		if err := database.ValidateChain(blocks, rules, nil); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "chain of %d blocks is valid\n", len(blocks))
		return nil
	},
}

var workCmd = &cobra.Command{
	Use:   "work <file>",
	Short: "Print the cumulative work of a chain stored as a JSON array of blocks.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blocks, err := readChain(args[0])
		if err != nil {
			return err
		}

		resp := struct {
			Blocks             int    `json:"blocks"`
			CumulativeWork     string `json:"cumulative_work"`
			RequiredDifficulty uint   `json:"required_difficulty"`
		}{
			Blocks:             len(blocks),
			CumulativeWork:     database.CumulativeWork(blocks).Dec(),
			RequiredDifficulty: database.RequiredDifficulty(blocks),
		}

		return show(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(workCmd)
	validateCmd.Flags().StringVarP(&powPolicy, "pow", "p", "strict", "Proof of work policy, strict or lenient.")
}

// readChain loads the blocks held in a JSON file.
func readChain(path string) ([]database.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var blocksData []database.BlockData
	if err := json.NewDecoder(f).Decode(&blocksData); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := validate.Check(blocksData); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return database.ToBlocks(blocksData)
}
