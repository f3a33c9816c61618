package led

// Control codes understood by an external display which owns the LED.
const (
	DC2 byte = 18 // LED on
	DC4 byte = 20 // LED off
)

// Link is the raw byte path to the display.
type Link interface {
	IsWritable() bool
	Putc(byte)
}

// ControlCodes signals a single LED on a remote display by sending DC2
// and DC4. The index is ignored. Nothing is sent while the link is not
// writable, so a state change may be lost.
type ControlCodes struct {
	Link Link
}

// On implements Driver.
func (d *ControlCodes) On(int) {
	if d.Link.IsWritable() {
		d.Link.Putc(DC2)
	}
}

// Off implements Driver.
func (d *ControlCodes) Off(int) {
	if d.Link.IsWritable() {
		d.Link.Putc(DC4)
	}
}
