package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// MineRequest is the payload for asking the node to mine a block. Data is a
// pointer so an empty payload can be mined while a missing one is rejected.
type MineRequest struct {
	Data *string `json:"data" validate:"required"`
}

// AddPeerRequest is the payload for connecting the node to a new peer.
type AddPeerRequest struct {
	Peer string `json:"peer" validate:"required,hostname_port"`
}

// Peers lists the peers this node knows about and the ones it holds an open
// connection with.
type Peers struct {
	Known     []peer.Peer `json:"known"`
	Connected []peer.Peer `json:"connected"`
}
