// Package status reports the transport and scanner state of a
// terminal over HTTP and MQTT.
package status

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/vterm.go/pkg/serial"
)

// Report is a snapshot of a terminal, encoded as a protobuf message on
// MQTT and /status.pb.
type Report struct {
	DeviceID     string  `protobuf:"bytes,1,opt,name=device_id,proto3" json:"device_id"`
	Baud         float64 `protobuf:"fixed64,2,opt,name=baud,proto3" json:"baud"`
	Mode         string  `protobuf:"bytes,3,opt,name=mode,proto3" json:"mode"`
	TxQueued     uint64  `protobuf:"varint,4,opt,name=tx_queued,proto3" json:"tx_queued"`
	TxDropped    uint64  `protobuf:"varint,5,opt,name=tx_dropped,proto3" json:"tx_dropped"`
	RxQueued     uint64  `protobuf:"varint,6,opt,name=rx_queued,proto3" json:"rx_queued"`
	RxDropped    uint64  `protobuf:"varint,7,opt,name=rx_dropped,proto3" json:"rx_dropped"`
	Discarded    uint64  `protobuf:"varint,8,opt,name=discarded,proto3" json:"discarded"`
	XOn          bool    `protobuf:"varint,9,opt,name=xon,proto3" json:"xon"`
	XOnSent      uint64  `protobuf:"varint,10,opt,name=xon_sent,proto3" json:"xon_sent"`
	XOffSent     uint64  `protobuf:"varint,11,opt,name=xoff_sent,proto3" json:"xoff_sent"`
	BusOwned     bool    `protobuf:"varint,12,opt,name=bus_owned,proto3" json:"bus_owned"`
	KeysPending  uint64  `protobuf:"varint,13,opt,name=keys_pending,proto3" json:"keys_pending"`
	KeyDrops     uint64  `protobuf:"varint,14,opt,name=key_drops,proto3" json:"key_drops"`
	KeysPressed  uint64  `protobuf:"varint,15,opt,name=keys_pressed,proto3" json:"keys_pressed"`
	LinkOverruns uint64  `protobuf:"varint,16,opt,name=link_overruns,proto3" json:"link_overruns"`
	UptimeMs     uint64  `protobuf:"varint,17,opt,name=uptime_ms,proto3" json:"uptime_ms"`
	Break        bool    `protobuf:"varint,18,opt,name=break,proto3" json:"break"`
}

// ErrMalformed indicates a report which can't be decoded.
var ErrMalformed = errors.New("malformed report")

// ProtoMessage implements proto.Message.
func (r *Report) ProtoMessage() {}

// Reset implements proto.Message.
func (r *Report) Reset() { *r = Report{} }

// String implements proto.Message.
func (r *Report) String() string { return proto.CompactTextString(r) }

// SetStats copies transport counters into the report.
func (r *Report) SetStats(mode serial.Mode, s serial.Stats) {
	r.Baud = s.Baud
	r.Mode = mode.String()
	r.TxQueued = uint64(s.TxQueued)
	r.TxDropped = s.TxDropped
	r.RxQueued = uint64(s.RxQueued)
	r.RxDropped = s.RxDropped
	r.Discarded = s.Discarded
	r.XOn = s.XOn
	r.XOnSent = s.XOnSent
	r.XOffSent = s.XOffSent
	r.BusOwned = s.BusOwned
	r.Break = s.Break
}

// Encode serializes the report. Zero fields are omitted.
func (r *Report) Encode() ([]byte, error) {
	return proto.Marshal(r)
}

// DecodeReport parses an encoded report. Unknown fields are skipped.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := proto.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &r, nil
}
