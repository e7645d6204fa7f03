package serial

import (
	ioctl "github.com/daedaluz/goioctl"
	"syscall"
	"unsafe"
)

// Winsize mirrors struct winsize from <sys/ioctl.h>.
type Winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// GetWinSize returns the terminal window size associated with the Port.
func (p *Port) GetWinSize() (*Winsize, error) {
	ws := &Winsize{}
	if err := ioctl.Ioctl(uintptr(p.f), tiocgwinsz, uintptr(unsafe.Pointer(ws))); err != nil {
		return nil, err
	}
	return ws, nil
}

// SetWinSize sets the terminal window size associated with the Port.
func (p *Port) SetWinSize(w *Winsize) error {
	return ioctl.Ioctl(uintptr(p.f), tiocswinsz, uintptr(unsafe.Pointer(w)))
}

// SetLockPT sets or clears the lock on the pty pair's slave side. A freshly
// opened /dev/ptmx master starts locked; it must be unlocked before the slave
// can be opened.
func (p *Port) SetLockPT(lock bool) error {
	var v int32
	if lock {
		v = 1
	}
	return ioctl.Ioctl(uintptr(p.f), tiocsptlck, uintptr(unsafe.Pointer(&v)))
}

// PTYNumber returns the pty number of the master, i.e. the N in /dev/pts/N.
func (p *Port) PTYNumber() (int, error) {
	var n int32
	if err := ioctl.Ioctl(uintptr(p.f), tiocgptn, uintptr(unsafe.Pointer(&n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetPTPeer opens the slave side of a pty pair directly from the master's file
// descriptor, equivalent to opening /dev/pts/N but without needing to resolve
// N or touch the filesystem. TIOCGPTPEER returns the new descriptor as the
// ioctl's return value rather than through an output argument, so this bypasses
// the error-only Ioctl helper and calls the syscall directly.
func (p *Port) GetPTPeer(flags int) (*Port, error) {
	fd, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(p.f), tiocgptpeer, uintptr(flags))
	if errno != 0 {
		return nil, errno
	}
	return &Port{f: int(fd), options: NewOptions()}, nil
}
