// Package p2p implements the network the node uses to exchange blocks with
// its peers. Peers hold a websocket connection to each other and speak a small
// protocol of three messages: ask for the latest block, ask for the whole
// chain and a response carrying one or more blocks.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HostHeader carries the private host of the dialing node so the accepting
// node can record it as a peer.
const HostHeader = "X-Node-Host"

// Path is the route on the private host that accepts peer connections.
const Path = "/v1/node/p2p"

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 32 << 20
)

// ErrShutdown is returned when a connection is requested after the network
// has been shut down.
var ErrShutdown = errors.New("network is shutting down")

// =============================================================================

// Config represents the configuration required to start the network.
type Config struct {
	DialTimeout time.Duration
	MaxRetries  uint64
	EvHandler   state.EventHandler
}

// Node manages the websocket connections to the peers of this node.
type Node struct {
	state       *state.State
	dialer      websocket.Dialer
	upgrader    websocket.Upgrader
	dialTimeout time.Duration
	maxRetries  uint64
	evHandler   state.EventHandler

	wg    sync.WaitGroup
	mu    sync.RWMutex
	shut  bool
	conns map[string]*conn
}

// Run creates a network node and registers it with the state package.
func Run(st *state.State, cfg Config) *Node {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	n := Node{
		state: st,
		dialer: websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialTimeout: dialTimeout,
		maxRetries:  cfg.MaxRetries,
		evHandler:   ev,
		conns:       make(map[string]*conn),
	}

	// Register this network with the state package.
	st.Network = &n

	return &n
}

// ConnectKnownPeers dials every known peer in the background. Peers that
// still can't be reached once the retries run out are removed from the known
// peer list.
func (n *Node) ConnectKnownPeers() {
	for _, p := range n.state.RetrieveKnownPeers() {
		go func(p peer.Peer) {
			if err := n.Connect(p.Host); err != nil {
				n.evHandler("p2p: ConnectKnownPeers: WARNING: removing peer: %s", err)
				n.state.RemoveKnownPeer(p)
			}
		}(p)
	}
}

// Accept upgrades the request to a websocket and serves the peer on the
// calling goroutine until the connection closes.
func (n *Node) Accept(w http.ResponseWriter, r *http.Request) error {
	host := r.Header.Get(HostHeader)
	if host == "" {
		host = r.RemoteAddr
	}

	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c, err := n.register(host, ws)
	if err != nil {
		ws.Close()
		return err
	}

	if r.Header.Get(HostHeader) != "" {
		n.state.AddKnownPeer(peer.New(host))
	}

	n.evHandler("p2p: Accept: peer connected: host[%s]", host)

	n.handshake(c)
	n.readLoop(c)

	return nil
}

// =============================================================================
// These methods implement the state.Network interface.

// Connect opens a connection to the peer unless one is already open. The
// dial is retried with an exponential backoff.
func (n *Node) Connect(host string) error {
	host = peer.New(host).Host

	if n.connected(host) {
		return nil
	}

	url := fmt.Sprintf("ws://%s%s", host, Path)
	header := http.Header{HostHeader: []string{n.state.RetrieveHost()}}

	var ws *websocket.Conn
	dial := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), n.dialTimeout)
		defer cancel()

		var err error
		ws, _, err = n.dialer.DialContext(ctx, url, header)
		if err != nil {
			n.evHandler("p2p: Connect: dial: host[%s]: WARNING: %s", host, err)
		}
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), n.maxRetries)
	if err := backoff.Retry(dial, b); err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c, err := n.register(host, ws)
	if err != nil {
		ws.Close()
		return err
	}

	n.evHandler("p2p: Connect: peer connected: host[%s]", host)

	go func() {
		n.handshake(c)
		n.readLoop(c)
	}()

	return nil
}

// Peers returns the set of peers this node has an open connection with.
func (n *Node) Peers() []peer.Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()

	hosts := make(map[string]struct{})
	for _, c := range n.conns {
		hosts[c.host] = struct{}{}
	}

	peers := make([]peer.Peer, 0, len(hosts))
	for host := range hosts {
		peers = append(peers, peer.New(host))
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}

// Shutdown closes every connection and waits for their goroutines
// to terminate.
func (n *Node) Shutdown() {
	n.evHandler("p2p: shutdown: started")
	defer n.evHandler("p2p: shutdown: completed")

	n.mu.Lock()
	n.shut = true
	for _, c := range n.conns {
		c.close()
	}
	n.mu.Unlock()

	n.wg.Wait()
}

// =============================================================================

// register tracks the connection. Each connection gets its own id since two
// nodes that dial each other at the same time end up with two connections.
func (n *Node) register(host string, ws *websocket.Conn) (*conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.shut {
		return nil, ErrShutdown
	}

	ws.SetReadLimit(maxMessageSize)

	c := conn{
		id:   uuid.NewString(),
		host: host,
		ws:   ws,
	}
	n.conns[c.id] = &c
	n.wg.Add(1)

	return &c, nil
}

// drop stops tracking the connection and closes it.
func (n *Node) drop(c *conn) {
	n.mu.Lock()
	delete(n.conns, c.id)
	n.mu.Unlock()

	c.close()
	n.wg.Done()

	n.evHandler("p2p: drop: peer disconnected: host[%s]", c.host)
}

// connected reports if a connection to the host is open.
func (n *Node) connected(host string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, c := range n.conns {
		if c.host == host {
			return true
		}
	}

	return false
}

// connections returns a copy of the open connections.
func (n *Node) connections() []*conn {
	n.mu.RLock()
	defer n.mu.RUnlock()

	conns := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}

	return conns
}

// =============================================================================

// conn is a single websocket connection to a peer. Writes are serialized
// since a websocket supports one concurrent writer.
type conn struct {
	id            string
	host          string
	ws            *websocket.Conn
	mu            sync.Mutex
	awaitingChain atomic.Bool
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.ws.WriteJSON(msg)
}

func (c *conn) close() {
	c.ws.Close()
}
