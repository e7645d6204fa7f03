package serial

// Mark/space ("stick") parity support, used by protocols that steal the
// parity bit to carry a 9th data bit over an 8-bit UART. With CMSPAR set,
// PARODD selects which of the two fixed parity values is transmitted:
// PARODD set -> mark (9th bit = 1), PARODD clear -> space (9th bit = 0).

// SetParitySpace configures the Termios to transmit/check space parity,
// i.e. a 9th bit of 0 on every byte.
func (attrs *Termios) SetParitySpace() {
	attrs.Cflag |= PARENB | CMSPAR
	attrs.Cflag &= ^PARODD
}

// SetParityMark configures the Termios to transmit/check mark parity,
// i.e. a 9th bit of 1 on every byte.
func (attrs *Termios) SetParityMark() {
	attrs.Cflag |= PARENB | CMSPAR | PARODD
}

// SetParityMarkingInput enables PARMRK input parity-error marking: any
// received byte whose parity disagrees with the configured check parity
// arrives prefixed with the two bytes 0xFF 0x00.
func (attrs *Termios) SetParityMarkingInput() {
	attrs.Iflag |= PARMRK | INPCK
	attrs.Iflag &= ^IGNPAR
}

// SetParitySpace is a convenience wrapper that fetches, mutates and
// re-applies the Port's current Termios with space parity selected.
func (p *Port) SetParitySpace() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.SetParitySpace()
	return p.SetAttr(TCSANOW, attrs)
}

// SetParityMark is the mark-parity analogue of SetParitySpace.
func (p *Port) SetParityMark() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.SetParityMark()
	return p.SetAttr(TCSANOW, attrs)
}

// EnableParityMarkingInput enables PARMRK/INPCK on the Port so the kernel
// flags parity-violating input bytes with a 0xFF 0x00 prefix.
func (p *Port) EnableParityMarkingInput() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.SetParityMarkingInput()
	return p.SetAttr(TCSANOW, attrs)
}
