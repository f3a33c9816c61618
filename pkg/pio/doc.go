// Package pio models the programmable I/O block used to implement the
// software serial channels.
//
// A Block has a small instruction memory shared by all programs and a
// fixed number of state machines. Each state machine runs one program
// at a rate set by its clock divider and exchanges data with the CPU
// through short TX/RX FIFOs. The electrical side of a state machine
// (the pins it shifts bits through) is abstracted as Drain/Feed, which
// a Link connects to a byte stream such as a host serial port.
package pio
