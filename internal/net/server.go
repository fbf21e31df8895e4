package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"heimdall/internal/registry"
	"heimdall/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	id   uuid.UUID
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// Server exposes the registry over a binary TCP protocol. All registry calls
// happen on the single session-handler goroutine, so operations retain a
// global sequential ordering regardless of connection concurrency.
type Server struct {
	address            string
	port               int
	registry           *registry.Registry
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

func New(address string, port int, reg *registry.Registry) *Server {
	return &Server{
		address:        address,
		port:           port,
		registry:       reg,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			session := s.addClientSession(conn)
			log.Info().
				Str("session", session.id.String()).
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// Report sends a serialized report back to the named client session.
func (s *Server) Report(clientAddress string, report Report) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(report.Serialize()); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// sessionHandler reads off incoming messages from clients and applies them to
// the registry, one at a time. Messages are received from the pool of workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case clientMessage := <-s.clientMessages:
			message := clientMessage.message
			if message.GetType() == Heartbeat {
				continue
			}

			report := s.dispatch(message)
			if err := s.Report(clientMessage.clientAddress, report); err != nil {
				log.Error().
					Err(err).
					Str("address", clientMessage.clientAddress).
					Msg("unable to report back to client")
			}
		}
	}
}

// dispatch applies one message to the registry and builds the reply. Errors
// from the registry are caller errors, reported back rather than logged up.
func (s *Server) dispatch(message Message) Report {
	switch m := message.(type) {
	case CreateOrderMessage:
		id, err := s.registry.Create(m.Caller, m.OfferAsset, m.OfferAmount, m.WantAsset, m.WantAmount)
		if err != nil {
			return newErrorReport(err)
		}
		log.Info().
			Uint64("order", id).
			Str("maker", m.Caller.String()).
			Msg("order created")
		return s.orderReport(id)

	case ApproveOrderMessage:
		if err := s.registry.Approve(m.Caller, m.OrderID); err != nil {
			return newErrorReport(err)
		}
		log.Info().Uint64("order", m.OrderID).Msg("order approved")
		return s.orderReport(m.OrderID)

	case CancelOrderMessage:
		if err := s.registry.Cancel(m.Caller, m.OrderID); err != nil {
			return newErrorReport(err)
		}
		log.Info().Uint64("order", m.OrderID).Msg("order canceled")
		return s.orderReport(m.OrderID)

	case FulfillOrderMessage:
		if err := s.registry.Fulfill(m.Caller, m.OrderID, m.Budget); err != nil {
			return newErrorReport(err)
		}
		log.Info().
			Uint64("order", m.OrderID).
			Str("taker", m.Caller.String()).
			Msg("order fulfilled")
		return s.orderReport(m.OrderID)

	case GetOrderMessage:
		return s.orderReport(m.OrderID)

	default:
		return newErrorReport(ErrInvalidMessageType)
	}
}

func (s *Server) orderReport(id uint64) Report {
	order, err := s.registry.Get(id)
	if err != nil {
		return newErrorReport(err)
	}
	return newOrderReport(order)
}

// handleConnection is a short-lived worker method which reads the next message
// off the connection, parses and passes it forward to sessionHandler to handle
// it. If the connection dies, the client session is cleaned up. This method
// does not lock any client session directly and gives up early if the
// connection is terminated. Therefore this method is thread safe on map
// accesses.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	address := conn.RemoteAddr().String()

	// Set max read timeout.
	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", address).
			Err(err).
			Msg("failed setting deadline for connection")
		s.deleteClientSession(address)
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			// If a read from a client fails, it is likely that the client
			// has exited. Clean up the client session.
			s.deleteClientSession(address)
			return nil
		}

		message, err := ParseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", address).
				Msg("error parsing message")
			if reportErr := s.Report(address, newErrorReport(err)); reportErr != nil {
				s.deleteClientSession(address)
			}
			// Keep the session; a malformed message is not fatal.
			s.pool.AddTask(conn)
			return nil
		}

		// Pass over to the message handling buffer and exit this worker.
		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: address,
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := ClientSession{
		id:   uuid.New(),
		conn: conn,
	}
	s.clientSessions[conn.RemoteAddr().String()] = session
	return session
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if session, ok := s.clientSessions[address]; ok {
		if err := session.conn.Close(); err != nil {
			log.Error().Str("address", address).Err(err).Msg("error closing connection")
		}
		delete(s.clientSessions, address)
	}
}
