package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)

	hub.Add("sync", client, ConnInfo{ConnID: "c1", UserID: "u1"}, func() {})
	require.Equal(t, 1, hub.Len())

	hub.Remove(client)
	require.Equal(t, 0, hub.Len())

	// removing twice is harmless
	hub.Remove(client)
	assert.Equal(t, 0, hub.Len())
}

func TestHubCloseAllStopsSessions(t *testing.T) {
	hub := NewHub()

	var stopped []string
	hub.Add("sync", NewClient(nil), ConnInfo{ConnID: "c1"}, func() { stopped = append(stopped, "c1") })
	hub.Add("messages", NewClient(nil), ConnInfo{ConnID: "c2"}, func() { stopped = append(stopped, "c2") })

	hub.CloseAll()
	assert.Equal(t, 0, hub.Len())
	assert.Len(t, stopped, 2)
}

func TestReportWriteErrorUnknownClient(t *testing.T) {
	hub := NewHub()
	// must not panic for a client that was already removed
	hub.ReportWriteError(NewClient(nil), assert.AnError)
}

func TestNewConnID(t *testing.T) {
	a := newConnID()
	b := newConnID()
	require.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
