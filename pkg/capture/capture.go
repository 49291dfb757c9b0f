// Package capture turns raw packet captures into per-window aggregate
// feature tables matching the dataset's schema, so researchers can build
// sample tables from their own traffic recordings.
package capture

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// Columns is the aggregate feature schema, one row per time window.
func Columns() []string {
	return []string{
		"pkt_count",
		"byte_count",
		"len_mean",
		"len_std",
		"len_min",
		"len_max",
		"iat_mean",
		"iat_std",
		"tcp_count",
		"udp_count",
		"icmp_count",
		"other_count",
		"tcp_ratio",
		"udp_ratio",
		"syn_count",
		"fin_count",
		"rst_count",
		"psh_count",
		"ack_count",
		"src_port_count",
		"dst_port_count",
	}
}

// packetInfo is the slice of a packet the aggregator cares about.
type packetInfo struct {
	ts      time.Time
	length  int
	proto   string // "tcp", "udp", "icmp" or "other"
	srcPort uint16
	dstPort uint16
	syn     bool
	fin     bool
	rst     bool
	psh     bool
	ack     bool
}

// summarize reduces a decoded packet to its aggregate inputs. Packets with
// no capture timestamp cannot be windowed and are reported as not usable.
func summarize(packet gopacket.Packet) (packetInfo, bool) {
	md := packet.Metadata()
	if md == nil || md.Timestamp.IsZero() {
		return packetInfo{}, false
	}

	info := packetInfo{
		ts:     md.Timestamp,
		length: len(packet.Data()),
		proto:  "other",
	}
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		info.proto = "tcp"
		info.srcPort = uint16(tcp.SrcPort)
		info.dstPort = uint16(tcp.DstPort)
		info.syn = tcp.SYN
		info.fin = tcp.FIN
		info.rst = tcp.RST
		info.psh = tcp.PSH
		info.ack = tcp.ACK
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		info.proto = "udp"
		info.srcPort = uint16(udp.SrcPort)
		info.dstPort = uint16(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		info.proto = "icmp"
	}
	return info, true
}

// Accumulator groups packets into fixed-length time windows and reduces
// each window to one feature row. Packets must arrive in capture order;
// a packet before the current window's start is an error.
type Accumulator struct {
	window time.Duration

	started bool
	start   time.Time
	lastTS  time.Time

	lens     []float64
	iats     []float64
	counts   map[string]int
	syn, fin int
	rst, psh int
	ack      int
	srcPorts map[uint16]struct{}
	dstPorts map[uint16]struct{}

	rows [][]float64
}

// NewAccumulator creates an accumulator with the given window length.
func NewAccumulator(window time.Duration) (*Accumulator, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %v", window)
	}
	a := &Accumulator{window: window}
	a.reset()
	return a, nil
}

func (a *Accumulator) reset() {
	a.lens = a.lens[:0]
	a.iats = a.iats[:0]
	a.counts = map[string]int{}
	a.syn, a.fin, a.rst, a.psh, a.ack = 0, 0, 0, 0, 0
	a.srcPorts = map[uint16]struct{}{}
	a.dstPorts = map[uint16]struct{}{}
}

// Add folds one packet into the current window, closing windows the packet
// has moved past.
func (a *Accumulator) Add(packet gopacket.Packet) error {
	info, ok := summarize(packet)
	if !ok {
		return nil
	}

	if !a.started {
		a.started = true
		a.start = info.ts.Truncate(a.window)
		a.lastTS = info.ts
	}
	if info.ts.Before(a.start) {
		return fmt.Errorf("packet at %v precedes current window start %v", info.ts, a.start)
	}

	for !info.ts.Before(a.start.Add(a.window)) {
		a.closeWindow()
		a.start = a.start.Add(a.window)
	}

	if len(a.lens) > 0 {
		a.iats = append(a.iats, info.ts.Sub(a.lastTS).Seconds())
	}
	a.lastTS = info.ts

	a.lens = append(a.lens, float64(info.length))
	a.counts[info.proto]++
	if info.proto == "tcp" || info.proto == "udp" {
		a.srcPorts[info.srcPort] = struct{}{}
		a.dstPorts[info.dstPort] = struct{}{}
	}
	if info.syn {
		a.syn++
	}
	if info.fin {
		a.fin++
	}
	if info.rst {
		a.rst++
	}
	if info.psh {
		a.psh++
	}
	if info.ack {
		a.ack++
	}
	return nil
}

// closeWindow reduces the current window to a feature row. Windows with no
// packets produce no row; a silent interval is absence of data, not a
// sample of zeros.
func (a *Accumulator) closeWindow() {
	if len(a.lens) == 0 {
		return
	}

	total := len(a.lens)
	byteCount := 0.0
	for _, l := range a.lens {
		byteCount += l
	}
	lenMean, lenStd := meanStd(a.lens)
	iatMean, iatStd := meanStd(a.iats)

	tcp := a.counts["tcp"]
	udp := a.counts["udp"]
	row := []float64{
		float64(total),
		byteCount,
		lenMean,
		lenStd,
		minOf(a.lens),
		maxOf(a.lens),
		iatMean,
		iatStd,
		float64(tcp),
		float64(udp),
		float64(a.counts["icmp"]),
		float64(a.counts["other"]),
		float64(tcp) / float64(total),
		float64(udp) / float64(total),
		float64(a.syn),
		float64(a.fin),
		float64(a.rst),
		float64(a.psh),
		float64(a.ack),
		float64(len(a.srcPorts)),
		float64(len(a.dstPorts)),
	}
	a.rows = append(a.rows, row)
	a.reset()
}

// Table closes the window in progress and returns every completed window
// as a feature table. The accumulator is drained and can be reused.
func (a *Accumulator) Table() *dataset.Table {
	a.closeWindow()
	t := dataset.NewTable(Columns())
	t.Rows = a.rows
	t.Source = fmt.Sprintf("capture_%dsec", int(a.window.Seconds()))
	a.rows = nil
	a.started = false
	return t
}

// ReadFile aggregates a pcap file into per-window feature rows.
func ReadFile(path string, windowSec int) (*dataset.Table, error) {
	if windowSec < dataset.MinWindow || windowSec > dataset.MaxWindow {
		return nil, fmt.Errorf("window %d out of range [%d, %d]",
			windowSec, dataset.MinWindow, dataset.MaxWindow)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	acc, err := NewAccumulator(time.Duration(windowSec) * time.Second)
	if err != nil {
		return nil, err
	}
	for {
		data, ci, err := r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		if m := packet.Metadata(); m != nil {
			m.CaptureInfo = ci
		}
		if err := acc.Add(packet); err != nil {
			return nil, err
		}
	}

	t := acc.Table()
	t.Source = filepath.Base(path)
	return t, nil
}

// WriteSamples writes a capture table as the canonical
// "<class>_samples_<N>sec.csv" under dir. The class lives in the file name,
// where the loader derives labels from; the CSV body carries only features.
func WriteSamples(dir, class string, windowSec int, t *dataset.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, dataset.TableName(class, windowSec))
	if err := dataset.WriteTable(path, t); err != nil {
		return "", err
	}
	return path, nil
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(std / float64(len(values)))
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
