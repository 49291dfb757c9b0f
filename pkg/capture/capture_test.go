package capture

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// tcpPacket builds a decodable Ethernet/IPv4/TCP packet stamped with ts.
func tcpPacket(t *testing.T, ts time.Time, srcPort, dstPort uint16, syn, ack bool, payload int) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		SYN:     syn,
		ACK:     ack,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts,
		eth, ip, tcp, gopacket.Payload(make([]byte, payload))))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	packet.Metadata().CaptureLength = len(buf.Bytes())
	packet.Metadata().Length = len(buf.Bytes())
	return packet
}

func udpPacket(t *testing.T, ts time.Time, srcPort, dstPort uint16) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts,
		eth, ip, udp, gopacket.Payload([]byte("modbus"))))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	return packet
}

func colIndex(t *testing.T, table *dataset.Table, name string) int {
	t.Helper()
	i, ok := table.ColumnIndex(name)
	require.True(t, ok, "column %s", name)
	return i
}

func TestAccumulatorSingleWindow(t *testing.T) {
	acc, err := NewAccumulator(1 * time.Second)
	require.NoError(t, err)

	require.NoError(t, acc.Add(tcpPacket(t, baseTime, 40000, 502, true, false, 10)))
	require.NoError(t, acc.Add(tcpPacket(t, baseTime.Add(200*time.Millisecond), 40000, 502, false, true, 50)))
	require.NoError(t, acc.Add(udpPacket(t, baseTime.Add(400*time.Millisecond), 40001, 47808)))

	table := acc.Table()
	require.Equal(t, 1, table.NumRows())
	assert.Equal(t, Columns(), table.Columns)

	row := table.Rows[0]
	assert.Equal(t, 3.0, row[colIndex(t, table, "pkt_count")])
	assert.Equal(t, 2.0, row[colIndex(t, table, "tcp_count")])
	assert.Equal(t, 1.0, row[colIndex(t, table, "udp_count")])
	assert.InDelta(t, 2.0/3.0, row[colIndex(t, table, "tcp_ratio")], 1e-12)
	assert.Equal(t, 1.0, row[colIndex(t, table, "syn_count")])
	assert.Equal(t, 1.0, row[colIndex(t, table, "ack_count")])
	assert.Equal(t, 0.0, row[colIndex(t, table, "rst_count")])
	assert.Equal(t, 2.0, row[colIndex(t, table, "src_port_count")])
	assert.Equal(t, 2.0, row[colIndex(t, table, "dst_port_count")])
	// Two gaps of 0.2s each.
	assert.InDelta(t, 0.2, row[colIndex(t, table, "iat_mean")], 1e-9)
}

func TestAccumulatorSplitsWindows(t *testing.T) {
	acc, err := NewAccumulator(1 * time.Second)
	require.NoError(t, err)

	// Three packets in the first second, one in the third; the silent
	// second in between yields no row.
	require.NoError(t, acc.Add(tcpPacket(t, baseTime, 40000, 502, false, true, 10)))
	require.NoError(t, acc.Add(tcpPacket(t, baseTime.Add(300*time.Millisecond), 40000, 502, false, true, 10)))
	require.NoError(t, acc.Add(tcpPacket(t, baseTime.Add(600*time.Millisecond), 40000, 502, false, true, 10)))
	require.NoError(t, acc.Add(tcpPacket(t, baseTime.Add(2500*time.Millisecond), 40000, 502, false, true, 10)))

	table := acc.Table()
	require.Equal(t, 2, table.NumRows())
	pktCol := colIndex(t, table, "pkt_count")
	assert.Equal(t, 3.0, table.Rows[0][pktCol])
	assert.Equal(t, 1.0, table.Rows[1][pktCol])
}

func TestAccumulatorRejectsBackwardsTime(t *testing.T) {
	acc, err := NewAccumulator(1 * time.Second)
	require.NoError(t, err)

	require.NoError(t, acc.Add(tcpPacket(t, baseTime, 40000, 502, false, true, 10)))
	err = acc.Add(tcpPacket(t, baseTime.Add(-5*time.Second), 40000, 502, false, true, 10))
	assert.Error(t, err)
}

func TestAccumulatorIgnoresUntimestampedPackets(t *testing.T) {
	acc, err := NewAccumulator(1 * time.Second)
	require.NoError(t, err)

	packet := tcpPacket(t, baseTime, 40000, 502, false, true, 10)
	packet.Metadata().Timestamp = time.Time{}
	require.NoError(t, acc.Add(packet))

	table := acc.Table()
	assert.Equal(t, 0, table.NumRows())
}

func TestNewAccumulatorRejectsBadWindow(t *testing.T) {
	_, err := NewAccumulator(0)
	assert.Error(t, err)
}

func TestWriteSamples(t *testing.T) {
	acc, err := NewAccumulator(2 * time.Second)
	require.NoError(t, err)
	require.NoError(t, acc.Add(tcpPacket(t, baseTime, 40000, 502, false, true, 10)))
	table := acc.Table()

	dir := t.TempDir()
	path, err := WriteSamples(dir, "benign", 2, table)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "benign_samples_2sec.csv"), path)

	loaded, err := dataset.ReadTable(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.NumRows())
	assert.Equal(t, Columns(), loaded.Columns)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.pcap"), 1)
	assert.Error(t, err)
}

func TestReadFileNotPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(path, []byte("this is not a capture"), 0o644))
	_, err := ReadFile(path, 1)
	assert.Error(t, err)
}

func TestReadFileBadWindow(t *testing.T) {
	_, err := ReadFile("whatever.pcap", 0)
	assert.Error(t, err)
	_, err = ReadFile("whatever.pcap", 11)
	assert.Error(t, err)
}
