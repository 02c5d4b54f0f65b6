// Package hosted provides the "external collaborator" implementations
// spec.md §1 treats as out of scope for the kernel core but SPEC_FULL.md
// wires up so the kernel can actually run on a workstation: a termios
// raw-mode UART reader and an mmap-backed shared page, grounded on the
// teacher's use of golang.org/x/sys/unix for low-level OS control in
// internal/queue/runner.go (CPU affinity via unix.SchedSetaffinity).
package hosted

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/uart"
)

// RawConsole puts stdin into termios raw mode (spec.md §6: "UART at
// 115200 baud, 8-N-1, no flow control" — the hosted analogue is simply
// "no line discipline between keystroke and PushByte") and forwards
// each byte read to a uart.Driver, translating DEL to Backspace per
// spec.md §6's "DEL 0x7F is mapped to BS on hosted configurations."
type RawConsole struct {
	fd       int
	saved    *unix.Termios
	driver   *uart.Driver
	logger   *logging.Logger
	stopCh   chan struct{}
}

// NewRawConsole puts f (normally os.Stdin) into raw mode and returns a
// console that will forward bytes to driver once Run is called.
func NewRawConsole(f *os.File, driver *uart.Driver) (*RawConsole, error) {
	fd := int(f.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Iflag &^= unix.IXON | unix.ICRNL | unix.BRKINT | unix.INPCK | unix.ISTRIP
	raw.Oflag &^= unix.OPOST
	raw.Cflag |= unix.CS8
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}

	return &RawConsole{
		fd:     fd,
		saved:  saved,
		driver: driver,
		logger: logging.Default(),
		stopCh: make(chan struct{}),
	}, nil
}

// Restore puts the terminal back into its original (cooked) mode.
func (c *RawConsole) Restore() error {
	return unix.IoctlSetTermios(c.fd, unix.TCSETS, c.saved)
}

// Run reads bytes from fd and forwards them to the UART driver until
// Stop is called or a read error occurs. It is meant to run on its own
// goroutine, standing in for the hardware UART IRQ of spec.md §6.
func (c *RawConsole) Run(f *os.File) {
	buf := make([]byte, 1)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		n, err := f.Read(buf)
		if err != nil || n == 0 {
			return
		}
		b := buf[0]
		if b == 0x7F {
			b = 0x08 // DEL mapped to BS on hosted configurations (spec.md §6)
		}
		c.driver.PushByte(b)
		if b == 0x04 { // Ctrl-D terminates hosted mode
			return
		}
	}
}

// Stop signals Run to return.
func (c *RawConsole) Stop() {
	close(c.stopCh)
}

// WriteByte implements svc.Console.
func (c *RawConsole) WriteByte(b byte) error {
	_, err := unix.Write(c.fd, []byte{b})
	return err
}

// WriteString implements svc.Console.
func (c *RawConsole) WriteString(s string) (int, error) {
	return unix.Write(c.fd, []byte(s))
}
