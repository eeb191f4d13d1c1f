package regsim

import (
	"errors"

	"tinygo.org/x/drivers"

	"sercomspi-go/drivers/samd21"
)

// ErrLengthMismatch is returned by Master.Tx when both buffers are given with
// different lengths.
var ErrLengthMismatch = errors.New("tx and rx buffers differ in length")

// idleMISO is what a master reads when no slave drives the line.
const idleMISO = 0xFF

// Master is an SPI bus master wired to one simulated SERCOM. Each Tx is one
// transaction framed by SS.
type Master struct {
	sim *Sim
	n   int
}

var _ drivers.SPI = (*Master)(nil)

// Master returns a bus master attached to SERCOMn's pads.
func (s *Sim) Master(n int) *Master { return &Master{sim: s, n: n} }

// Tx clocks w out and fills r. Either may be nil.
func (m *Master) Tx(w, r []byte) error {
	if w != nil && r != nil && len(w) != len(r) {
		return ErrLengthMismatch
	}
	n := len(w)
	if n == 0 {
		n = len(r)
	}

	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()

	m.sim.selectSlave(m.n)
	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		in := m.sim.shift(m.n, out)
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

// Transfer clocks a single byte in its own transaction.
func (m *Master) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := m.Tx([]byte{b}, r[:])
	return r[0], err
}

func (s *Sim) listening(n int) bool {
	if !s.clockedSERCOM(n) || s.sercom[n].resetting {
		return false
	}
	spi := samd21.SERCOMSPI(n)
	a := s.mem[spi.CTRLA.Addr]
	mode := (a & samd21.SERCOM_SPI_CTRLA_MODE_Msk) >> samd21.SERCOM_SPI_CTRLA_MODE_Pos
	return a&samd21.SERCOM_SPI_CTRLA_ENABLE != 0 && mode == samd21.SERCOM_SPI_CTRLA_MODE_SPI_SLAVE
}

// selectSlave models the falling edge of SS.
func (s *Sim) selectSlave(n int) {
	if !s.listening(n) {
		return
	}
	spi := samd21.SERCOMSPI(n)
	if s.mem[spi.CTRLB.Addr]&samd21.SERCOM_SPI_CTRLB_SSDE != 0 {
		s.mem[spi.INTFLAG.Addr] |= samd21.SERCOM_SPI_INT_SSL
	}
}

// shift exchanges one byte with SERCOMn and returns what the slave drove on
// MISO.
func (s *Sim) shift(n int, mosi byte) byte {
	if !s.listening(n) {
		return idleMISO
	}
	spi := samd21.SERCOMSPI(n)
	st := &s.sercom[n]
	miso := st.txData
	s.mem[spi.INTFLAG.Addr] |= samd21.SERCOM_SPI_INT_TXC | samd21.SERCOM_SPI_INT_DRE
	if s.mem[spi.CTRLB.Addr]&samd21.SERCOM_SPI_CTRLB_RXEN != 0 {
		st.received = append(st.received, mosi)
		s.mem[spi.DATA.Addr] = uint32(mosi)
		s.mem[spi.INTFLAG.Addr] |= samd21.SERCOM_SPI_INT_RXC
	}
	return miso
}
