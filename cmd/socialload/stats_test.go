package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	text := stampMessage("hello there", at)

	got, ok := parseStamp(text)
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}

func TestParseStampRejectsPlainText(t *testing.T) {
	for _, text := range []string{"hello", "[lt:abc] hi", "[lt:123 no close"} {
		_, ok := parseStamp(text)
		assert.False(t, ok, text)
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := &Stats{}
	s.recordSent()
	s.recordSent()
	s.recordSendFailure()
	s.recordDelivery(10 * time.Millisecond)
	s.recordDelivery(30 * time.Millisecond)

	snap := s.snapshot()
	assert.Equal(t, int64(2), snap.Sent)
	assert.Equal(t, int64(1), snap.SendFailures)
	assert.Equal(t, 20*time.Millisecond, snap.AvgLatency)
	assert.InDelta(t, 100.0, snap.DeliveryRate(), 0.001)
	assert.Contains(t, snap.String(), "2 sent")
}

func TestLoadAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	require.NoError(t, os.WriteFile(path, []byte("# bots\nbot1@example.com:pw-one\n\nbot2@example.com:pw:two\n"), 0600))

	accounts, err := loadAccounts(path)
	require.NoError(t, err)
	assert.Equal(t, []account{
		{email: "bot1@example.com", password: "pw-one"},
		{email: "bot2@example.com", password: "pw:two"},
	}, accounts)

	require.NoError(t, os.WriteFile(path, []byte("no-separator\n"), 0600))
	_, err = loadAccounts(path)
	assert.Error(t, err)
}
