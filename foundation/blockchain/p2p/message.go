package p2p

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// MessageType identifies the purpose of a message exchanged between peers.
type MessageType int

// Set of message types understood by the protocol.
const (
	QueryLatest        MessageType = 0
	QueryAll           MessageType = 1
	ResponseBlockchain MessageType = 2
)

// String implements the fmt.Stringer interface.
func (mt MessageType) String() string {
	switch mt {
	case QueryLatest:
		return "QUERY_LATEST"
	case QueryAll:
		return "QUERY_ALL"
	case ResponseBlockchain:
		return "RESPONSE_BLOCKCHAIN"
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(mt))
}

// Message is the envelope written to the websocket as JSON.
type Message struct {
	Type MessageType          `json:"type"`
	Data []database.BlockData `json:"data,omitempty"`
}

func queryLatestMsg() Message {
	return Message{Type: QueryLatest}
}

func queryAllMsg() Message {
	return Message{Type: QueryAll}
}

func responseMsg(blocks ...database.Block) Message {
	return Message{
		Type: ResponseBlockchain,
		Data: database.NewBlocksData(blocks),
	}
}
