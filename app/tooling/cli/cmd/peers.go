package cmd

import (
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Print the peers known to and connected with the node.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var peers struct {
			Known     []peer.Peer `json:"known"`
			Connected []peer.Peer `json:"connected"`
		}
		if err := call(http.MethodGet, "/v1/peers/list", nil, &peers); err != nil {
			return err
		}
		return show(cmd, peers)
	},
}

var addPeerCmd = &cobra.Command{
	Use:   "addpeer <host:port>",
	Short: "Connect the node to the peer's private host.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			Peer string `json:"peer"`
		}{
			Peer: peer.New(args[0]).Host,
		}

		var resp struct {
			Status string `json:"status"`
		}
		if err := call(http.MethodPost, "/v1/peers/add", req, &resp); err != nil {
			return err
		}
		return show(cmd, resp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a summary of the node's chain.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status state.Status
		if err := call(http.MethodGet, "/v1/node/status", nil, &status); err != nil {
			return err
		}
		return show(cmd, status)
	},
}

func init() {
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(addPeerCmd)
	rootCmd.AddCommand(statusCmd)
}
