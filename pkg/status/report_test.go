package status

import (
	"errors"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/vterm.go/pkg/serial"
)

func TestReportWireFormat(t *testing.T) {
	r := &Report{DeviceID: "t1", XOn: true, TxQueued: 300}
	data, err := r.Encode()
	require.NoError(t, err)
	expected := []byte{0x0a, 2, 't', '1'}
	// tx_queued = 4
	expected = append(expected, proto.EncodeVarint(4<<3|proto.WireVarint)...)
	expected = append(expected, proto.EncodeVarint(300)...)
	// xon = 9
	expected = append(expected, proto.EncodeVarint(9<<3|proto.WireVarint)...)
	expected = append(expected, 1)
	require.Equal(t, expected, data)
}

func TestReportBaudIsDouble(t *testing.T) {
	data, err := (&Report{Baud: 9600}).Encode()
	require.NoError(t, err)
	require.Len(t, data, 9)
	require.Equal(t, byte(2<<3|proto.WireFixed64), data[0])
}

func TestEmptyReport(t *testing.T) {
	data, err := (&Report{}).Encode()
	require.NoError(t, err)
	require.Empty(t, data)
	r, err := DecodeReport(data)
	require.NoError(t, err)
	require.Equal(t, &Report{}, r)
}

func TestReportRoundTrip(t *testing.T) {
	r := &Report{DeviceID: "dev"}
	r.SetStats(serial.ModePassThrough, serial.Stats{
		Baud:      115207.4,
		TxQueued:  12,
		TxDropped: 1 << 40,
		RxQueued:  21,
		Discarded: 3,
		XOffSent:  1,
		BusOwned:  true,
		Break:     true,
	})
	r.KeysPressed = 5
	r.UptimeMs = 123456
	data, err := r.Encode()
	require.NoError(t, err)
	decoded, err := DecodeReport(data)
	require.NoError(t, err)
	require.Equal(t, r, decoded)
	require.Equal(t, "passthrough", decoded.Mode)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	buf := proto.NewBuffer(nil)
	require.NoError(t, buf.EncodeVarint(99<<3|proto.WireBytes))
	require.NoError(t, buf.EncodeStringBytes("future"))
	require.NoError(t, buf.EncodeVarint(98<<3|proto.WireFixed32))
	require.NoError(t, buf.EncodeFixed32(7))
	// rx_dropped = 7
	require.NoError(t, buf.EncodeVarint(7<<3|proto.WireVarint))
	require.NoError(t, buf.EncodeVarint(4))
	r, err := DecodeReport(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, &Report{RxDropped: 4}, r)
}

func TestDecodeMalformed(t *testing.T) {
	good, err := (&Report{DeviceID: "device", Baud: 9600}).Encode()
	require.NoError(t, err)
	testCases := [][]byte{
		{0x80},
		{4 << 3, 0x80},
		good[:len(good)-3],
		good[:4],
		{1<<3 | 7},
	}
	for _, data := range testCases {
		_, err := DecodeReport(data)
		require.Error(t, err, "%x", data)
		require.True(t, errors.Is(err, ErrMalformed))
	}
}
