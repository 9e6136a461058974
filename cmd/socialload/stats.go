package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Stats tracks load test counters. All fields are updated concurrently.
type Stats struct {
	sent         atomic.Int64
	sendFailures atomic.Int64
	delivered    atomic.Int64
	totalLatency atomic.Int64 // microseconds, over delivered messages

	authErrors    atomic.Int64
	connectErrors atomic.Int64
	drops         atomic.Int64
}

func (s *Stats) recordSent() { s.sent.Add(1) }
func (s *Stats) recordSendFailure() { s.sendFailures.Add(1) }
func (s *Stats) recordAuthError() { s.authErrors.Add(1) }
func (s *Stats) recordConnectError() { s.connectErrors.Add(1) }
func (s *Stats) recordDrop() { s.drops.Add(1) }

func (s *Stats) recordDelivery(latency time.Duration) {
	s.delivered.Add(1)
	s.totalLatency.Add(latency.Microseconds())
}

// Snapshot is a consistent-enough copy of the counters for reporting
type Snapshot struct {
	Sent, SendFailures, Delivered int64
	AuthErrors, ConnectErrors     int64
	Drops                         int64
	AvgLatency                    time.Duration
}

func (s *Stats) snapshot() Snapshot {
	snap := Snapshot{
		Sent:          s.sent.Load(),
		SendFailures:  s.sendFailures.Load(),
		Delivered:     s.delivered.Load(),
		AuthErrors:    s.authErrors.Load(),
		ConnectErrors: s.connectErrors.Load(),
		Drops:         s.drops.Load(),
	}
	if snap.Delivered > 0 {
		snap.AvgLatency = time.Duration(s.totalLatency.Load()/snap.Delivered) * time.Microsecond
	}
	return snap
}

// DeliveryRate is the share of sent messages that reached their recipient
func (s Snapshot) DeliveryRate() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Delivered) / float64(s.Sent) * 100
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%d sent, %d failed, %d delivered (%.1f%%), avg latency %v, %d auth errors, %d connect errors, %d drops",
		s.Sent, s.SendFailures, s.Delivered, s.DeliveryRate(), s.AvgLatency.Round(time.Microsecond),
		s.AuthErrors, s.ConnectErrors, s.Drops)
}

// Messages carry their send time so the recipient can measure latency.
const stampPrefix = "[lt:"

func stampMessage(text string, at time.Time) string {
	return stampPrefix + strconv.FormatInt(at.UnixNano(), 10) + "] " + text
}

// parseStamp extracts the send time from a stamped message
func parseStamp(text string) (time.Time, bool) {
	if !strings.HasPrefix(text, stampPrefix) {
		return time.Time{}, false
	}
	end := strings.IndexByte(text, ']')
	if end < 0 {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(text[len(stampPrefix):end], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
