package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// ErrNoNetwork is returned when a peer operation is requested before a
// network has registered itself with the state.
var ErrNoNetwork = errors.New("no network registered")

// =============================================================================

// AddKnownPeer provides the ability to add a new peer to
// the known peer list. It returns false when the peer is this
// node or is already known.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer removes a peer from the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// ConnectPeer adds the host to the known peer list and asks the network to
// open a connection to it.
func (s *State) ConnectPeer(host string) error {
	s.evHandler("state: ConnectPeer: started: host[%s]", host)
	defer s.evHandler("state: ConnectPeer: completed")

	if host == "" {
		return errors.New("peer host is empty")
	}

	if s.AddKnownPeer(peer.New(host)) {
		s.evHandler("state: ConnectPeer: add peer nodes: adding peer-node %s", host)
	}

	if err := s.Network.Connect(host); err != nil {
		return fmt.Errorf("connect %s: %w", host, err)
	}

	return nil
}

// ConnectedPeers returns the peers the network currently holds an open
// connection with.
func (s *State) ConnectedPeers() []peer.Peer {
	return s.Network.Peers()
}
