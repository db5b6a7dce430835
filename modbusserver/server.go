// Package modbusserver exposes the register store to external clients
// (HMI, controller) over Modbus TCP. Only holding registers exist; the
// simulation loop keeps running no matter what clients do.
package modbusserver

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/tanklab/cstr/registers"
)

// UnitID is the only Modbus unit this server answers for.
const UnitID = 1

// A Server serves holding-register reads and writes against a Store.
type Server struct {
	store  *registers.Store
	logger *log.Logger

	mb *modbus.ModbusServer

	mu      sync.Mutex
	clients map[string]bool
}

// New creates a server over the given store.
func New(store *registers.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		store:   store,
		logger:  logger,
		clients: make(map[string]bool),
	}
}

// Start listens on url (e.g. "tcp://0.0.0.0:5020") and serves clients
// until Stop is called.
func (s *Server) Start(url string) error {
	mb, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    30 * time.Second,
		MaxClients: 8,
	}, s)
	if err != nil {
		return fmt.Errorf("creating modbus server: %w", err)
	}

	if err := mb.Start(); err != nil {
		return fmt.Errorf("starting modbus server on %s: %w", url, err)
	}

	s.mb = mb
	s.logger.Printf("modbus server listening on %s", url)

	return nil
}

// Stop shuts the server down and drops all client connections.
func (s *Server) Stop() error {
	if s.mb == nil {
		return nil
	}

	return s.mb.Stop()
}

// HandleHoldingRegisters serves read (fc 3) and write (fc 6, 16) requests.
// The wire carries the low 16 bits of each register's fixed-point
// encoding.
func (s *Server) HandleHoldingRegisters(
	req *modbus.HoldingRegistersRequest,
) ([]uint16, error) {
	if req.UnitId != UnitID {
		return nil, modbus.ErrIllegalFunction
	}

	s.noteClient(req.ClientAddr)

	first := int(req.Addr)
	count := int(req.Quantity)
	if first+count > s.store.Len() {
		return nil, modbus.ErrIllegalDataAddress
	}

	if req.IsWrite {
		for i, word := range req.Args {
			s.store.WriteEncoded(first+i, int32(word))
		}
		return nil, nil
	}

	res := make([]uint16, count)
	for i := range res {
		enc, ok := s.store.ReadEncoded(first + i)
		if !ok {
			return nil, modbus.ErrIllegalDataAddress
		}
		res[i] = uint16(enc)
	}

	return res, nil
}

// HandleCoils rejects coil access; this device has none.
func (s *Server) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleDiscreteInputs rejects discrete-input access; this device has none.
func (s *Server) HandleDiscreteInputs(
	*modbus.DiscreteInputsRequest,
) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleInputRegisters rejects input-register access; all values live in
// holding registers.
func (s *Server) HandleInputRegisters(
	*modbus.InputRegistersRequest,
) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

// noteClient logs each client address the first time it is seen. The
// transport library owns the connection lifecycle, so this is where
// connects become observable.
func (s *Server) noteClient(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clients[addr] {
		s.clients[addr] = true
		s.logger.Printf("client connected: %s", addr)
	}
}

// ClientCount returns how many distinct client addresses have been seen.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}
