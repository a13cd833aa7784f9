package beast

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAddr is the conventional dump1090 Beast output port
const DefaultAddr = ":30005"

const (
	clientQueue  = 256
	writeTimeout = 5 * time.Second
)

// Broadcaster serves framed Beast messages to every connected TCP client.
// Slow clients drop messages rather than stall the feed.
type Broadcaster struct {
	addr     string
	logger   *logrus.Logger
	listener net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex

	sent        atomic.Uint64
	dropped     atomic.Uint64
	clientCount atomic.Int32

	running atomic.Bool
	wg      sync.WaitGroup
}

type client struct {
	id   string
	conn net.Conn
	ch   chan []byte
}

// Stats contains broadcaster statistics
type Stats struct {
	Sent    uint64
	Dropped uint64
	Clients int32
}

// NewBroadcaster creates a broadcaster that will listen on addr
func NewBroadcaster(addr string, logger *logrus.Logger) *Broadcaster {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Broadcaster{
		addr:    addr,
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// Start binds the listener and accepts clients in the background
func (b *Broadcaster) Start() error {
	if b.running.Load() {
		return fmt.Errorf("beast broadcaster already running")
	}

	lis, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.addr, err)
	}
	b.listener = lis
	b.running.Store(true)

	b.logger.WithField("addr", lis.Addr().String()).Info("Beast output listening")

	b.wg.Add(1)
	go b.acceptLoop()
	return nil
}

// Addr returns the bound address, or nil before Start
func (b *Broadcaster) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

func (b *Broadcaster) acceptLoop() {
	defer b.wg.Done()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if !b.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			b.logger.WithError(err).Warn("Beast accept failed")
			continue
		}
		b.addClient(conn)
	}
}

func (b *Broadcaster) addClient(conn net.Conn) {
	c := &client{
		id:   conn.RemoteAddr().String(),
		conn: conn,
		ch:   make(chan []byte, clientQueue),
	}

	b.clientsMu.Lock()
	b.clients[c.id] = c
	b.clientsMu.Unlock()
	b.clientCount.Add(1)

	b.logger.WithFields(logrus.Fields{
		"client": c.id,
		"total":  b.clientCount.Load(),
	}).Info("Beast client connected")

	b.wg.Add(2)
	go b.writeLoop(c)
	go func() {
		defer b.wg.Done()
		// Clients never send anything meaningful; EOF means they left
		_, _ = io.Copy(io.Discard, conn)
		b.removeClient(c.id)
	}()
}

func (b *Broadcaster) writeLoop(c *client) {
	defer b.wg.Done()

	for data := range c.ch {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.conn.Write(data); err != nil {
			b.logger.WithError(err).WithField("client", c.id).Debug("Beast write failed")
			b.removeClient(c.id)
			// drain until removeClient closes the channel
			for range c.ch {
			}
			return
		}
		b.sent.Add(1)
	}
}

func (b *Broadcaster) removeClient(id string) {
	b.clientsMu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
		close(c.ch)
	}
	b.clientsMu.Unlock()

	if !ok {
		return
	}
	c.conn.Close()
	b.clientCount.Add(-1)
	b.logger.WithFields(logrus.Fields{
		"client":    id,
		"remaining": b.clientCount.Load(),
	}).Info("Beast client disconnected")
}

// Broadcast queues data for every connected client
func (b *Broadcaster) Broadcast(data []byte) {
	if !b.running.Load() {
		return
	}

	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	for _, c := range b.clients {
		select {
		case c.ch <- data:
		default:
			b.dropped.Add(1)
		}
	}
}

// Stop closes the listener and every client connection
func (b *Broadcaster) Stop() {
	if !b.running.Swap(false) {
		return
	}
	if b.listener != nil {
		b.listener.Close()
	}

	b.clientsMu.RLock()
	ids := make([]string, 0, len(b.clients))
	for id := range b.clients {
		ids = append(ids, id)
	}
	b.clientsMu.RUnlock()
	for _, id := range ids {
		b.removeClient(id)
	}

	b.wg.Wait()
	b.logger.Info("Beast output stopped")
}

// Stats returns current broadcaster statistics
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Sent:    b.sent.Load(),
		Dropped: b.dropped.Load(),
		Clients: b.clientCount.Load(),
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	return int(b.clientCount.Load())
}
