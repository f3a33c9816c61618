package pio

// Program is a state machine program loaded into instruction memory.
type Program struct {
	Name         string
	Instructions []uint16
	// CyclesPerBit is the number of state machine cycles spent on
	// each serial bit, the oversampling factor of the program.
	CyclesPerBit int
}

// UARTCyclesPerBit is the oversampling factor of the UART programs.
const UARTCyclesPerBit = 8

// UART programs: 8N1, LSB first, 8 cycles per bit.
var (
	UARTTx = &Program{
		Name: "uart_tx",
		Instructions: []uint16{
			0x9fa0, // pull block side 1 [7]
			0xf727, // set x, 7 side 0 [7]
			0x6001, // out pins, 1
			0x0642, // jmp x-- 2 [6]
		},
		CyclesPerBit: UARTCyclesPerBit,
	}

	UARTRx = &Program{
		Name: "uart_rx",
		Instructions: []uint16{
			0x2020, // wait 0 pin, 0
			0xea27, // set x, 7 [10]
			0x4001, // in pins, 1
			0x0642, // jmp x-- 2 [6]
			0x00c8, // jmp pin 8
			0xc014, // irq nowait 4 rel
			0x20a0, // wait 1 pin, 0
			0x0000, // jmp 0
			0x8020, // push block
		},
		CyclesPerBit: UARTCyclesPerBit,
	}
)
