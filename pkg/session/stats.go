package session

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsQueueSize is the number of 1-second buckets kept for the moving
// bits-per-second window.
const StatsQueueSize = 5

// Stats tracks per-session counters and a moving bandwidth window. It
// implements prometheus.Collector directly over a set of atomic counters and
// a mutex-guarded bucket ring, instead of one Collector per metric.
type Stats struct {
	regionHandle uint64

	sentPackets uint64
	recvPackets uint64
	sentBytes   uint64
	recvBytes   uint64
	resentCount uint64
	duplicates  uint64

	bucketMu   sync.Mutex
	buckets    [StatsQueueSize]uint64 // bytes received per 1s bucket
	bucketIdx  int
	bucketTick time.Time
}

func newStats(regionHandle uint64) *Stats {
	return &Stats{regionHandle: regionHandle, bucketTick: time.Time{}}
}

func (s *Stats) addSent(n int) {
	atomic.AddUint64(&s.sentPackets, 1)
	atomic.AddUint64(&s.sentBytes, uint64(n))
}

func (s *Stats) addRecv(n int) {
	atomic.AddUint64(&s.recvPackets, 1)
	atomic.AddUint64(&s.recvBytes, uint64(n))
	s.bucketMu.Lock()
	s.buckets[s.bucketIdx] += uint64(n)
	s.bucketMu.Unlock()
}

func (s *Stats) addResend()    { atomic.AddUint64(&s.resentCount, 1) }
func (s *Stats) addDuplicate() { atomic.AddUint64(&s.duplicates, 1) }

// tickBuckets advances the moving-window ring buffer. Called once per second
// by the same scheduler that drives resends.
func (s *Stats) tickBuckets(now time.Time) {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	s.bucketIdx = (s.bucketIdx + 1) % StatsQueueSize
	s.buckets[s.bucketIdx] = 0
	s.bucketTick = now
}

// BitsPerSecond averages the buckets in the ring, giving a windowed rate
// rather than an instantaneous sample.
func (s *Stats) BitsPerSecond() float64 {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	var total uint64
	for _, b := range s.buckets {
		total += b
	}
	return float64(total) * 8 / float64(StatsQueueSize)
}

var (
	statsSentPacketsDesc = prometheus.NewDesc(
		"region_session_sent_packets_total", "Packets sent on this session.",
		[]string{"region_handle"}, nil)
	statsRecvPacketsDesc = prometheus.NewDesc(
		"region_session_recv_packets_total", "Packets received on this session.",
		[]string{"region_handle"}, nil)
	statsSentBytesDesc = prometheus.NewDesc(
		"region_session_sent_bytes_total", "Bytes sent on this session.",
		[]string{"region_handle"}, nil)
	statsRecvBytesDesc = prometheus.NewDesc(
		"region_session_recv_bytes_total", "Bytes received on this session.",
		[]string{"region_handle"}, nil)
	statsResendsDesc = prometheus.NewDesc(
		"region_session_resends_total", "Packets retransmitted on this session.",
		[]string{"region_handle"}, nil)
	statsDuplicatesDesc = prometheus.NewDesc(
		"region_session_duplicates_total", "Duplicate inbound packets discarded.",
		[]string{"region_handle"}, nil)
	statsBpsDesc = prometheus.NewDesc(
		"region_session_recv_bits_per_second", "Moving-window inbound bitrate.",
		[]string{"region_handle"}, nil)
)

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	ch <- statsSentPacketsDesc
	ch <- statsRecvPacketsDesc
	ch <- statsSentBytesDesc
	ch <- statsRecvBytesDesc
	ch <- statsResendsDesc
	ch <- statsDuplicatesDesc
	ch <- statsBpsDesc
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	label := regionHandleLabel(s.regionHandle)
	ch <- prometheus.MustNewConstMetric(statsSentPacketsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.sentPackets)), label)
	ch <- prometheus.MustNewConstMetric(statsRecvPacketsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.recvPackets)), label)
	ch <- prometheus.MustNewConstMetric(statsSentBytesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.sentBytes)), label)
	ch <- prometheus.MustNewConstMetric(statsRecvBytesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.recvBytes)), label)
	ch <- prometheus.MustNewConstMetric(statsResendsDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.resentCount)), label)
	ch <- prometheus.MustNewConstMetric(statsDuplicatesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&s.duplicates)), label)
	ch <- prometheus.MustNewConstMetric(statsBpsDesc, prometheus.GaugeValue, s.BitsPerSecond(), label)
}

func regionHandleLabel(h uint64) string {
	return strconv.FormatUint(h, 10)
}

// Stats exposes the session's collector for registration by the caller.
func (s *Session) Stats() *Stats { return s.stats }
