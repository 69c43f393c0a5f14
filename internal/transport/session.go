// internal/transport/session.go
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Session is one exclusive Modbus TCP link to a device.
// Unit selection is a local handler mutation and cannot fail while connected.
type Session interface {
	ReadRegisters(addr, quantity uint16) ([]byte, error)
	WriteRegisters(addr uint16, data []byte) error
	SelectUnit(id uint8)
	SetTimeout(d time.Duration)
	IsOpen() bool
	Close() error
}

// Dialer opens a Session. Swappable so the pool and engine can be
// tested against fakes.
type Dialer func(host string, port int, timeout time.Duration) (Session, error)

type tcpSession struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	open    bool
}

// DialTCP opens a Modbus TCP session using goburrow/modbus.
func DialTCP(host string, port int, timeout time.Duration) (Session, error) {
	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", host, port))
	handler.Timeout = timeout

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}

	return &tcpSession{
		handler: handler,
		client:  modbus.NewClient(handler),
		open:    true,
	}, nil
}

func (s *tcpSession) ReadRegisters(addr, quantity uint16) ([]byte, error) {
	if !s.open {
		return nil, errors.New("transport: session not open")
	}
	return s.client.ReadHoldingRegisters(addr, quantity)
}

func (s *tcpSession) WriteRegisters(addr uint16, data []byte) error {
	if !s.open {
		return errors.New("transport: session not open")
	}
	if len(data)%2 != 0 {
		return errors.New("transport: register data must be an even number of bytes")
	}
	quantity := uint16(len(data) / 2)
	if quantity == 1 {
		value := uint16(data[0])<<8 | uint16(data[1])
		_, err := s.client.WriteSingleRegister(addr, value)
		return err
	}
	_, err := s.client.WriteMultipleRegisters(addr, quantity, data)
	return err
}

func (s *tcpSession) SelectUnit(id uint8) {
	s.handler.SlaveId = id
}

func (s *tcpSession) SetTimeout(d time.Duration) {
	s.handler.Timeout = d
}

func (s *tcpSession) IsOpen() bool {
	return s.open
}

func (s *tcpSession) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	return s.handler.Close()
}
