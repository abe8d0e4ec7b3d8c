package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/settings"
)

func receive(t *testing.T, ch Channel) protocol.Message {
	t.Helper()
	select {
	case m, ok := <-ch.Messages():
		require.True(t, ok, "channel closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPipeDelivers(t *testing.T) {
	host, surface := Pipe()
	defer host.Close()

	require.NoError(t, host.Send(protocol.CameraFov{Fov: 60}))
	require.NoError(t, surface.Send(protocol.Ready{}))

	assert.Equal(t, protocol.CameraFov{Fov: 60}, receive(t, surface))
	assert.Equal(t, protocol.Ready{}, receive(t, host))
}

func TestPipeCopiesPayload(t *testing.T) {
	host, surface := Pipe()
	defer host.Close()

	target := settings.Vec3{1, 1, 1}
	require.NoError(t, host.Send(protocol.CameraPosition{Position: settings.Vec3{3, 3, 3}, Target: &target}))
	target[0] = 99

	got := receive(t, surface).(protocol.CameraPosition)
	require.NotNil(t, got.Target)
	assert.Equal(t, settings.Vec3{1, 1, 1}, *got.Target)
}

func TestPipeDropsWhenFull(t *testing.T) {
	host, _ := Pipe()
	defer host.Close()

	for range DefaultBuffer {
		require.NoError(t, host.Send(protocol.Ready{}))
	}
	assert.ErrorIs(t, host.Send(protocol.Ready{}), ErrDropped)
}

func TestPipeClose(t *testing.T) {
	host, surface := Pipe()
	require.NoError(t, surface.Close())
	require.NoError(t, surface.Close())

	assert.ErrorIs(t, host.Send(protocol.Ready{}), ErrClosed)
	_, ok := <-host.Messages()
	assert.False(t, ok)
}

func TestWebSocketRoundTrip(t *testing.T) {
	received := make(chan protocol.Message, 1)
	srv := httptest.NewServer(Handler(func(c *Conn, _ *http.Request) {
		m := <-c.Messages()
		received <- m
		_ = c.Send(protocol.Renderer{Type: protocol.RendererWebGL})
		<-c.Done()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(t.Context(), url)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(protocol.EnvMap{Path: "/images/cannon_1k.hdr"}))
	select {
	case m := <-received:
		assert.Equal(t, protocol.EnvMap{Path: "/images/cannon_1k.hdr"}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received message")
	}

	assert.Equal(t, protocol.Renderer{Type: protocol.RendererWebGL}, receive(t, client))
}

func TestWebSocketSendAfterClose(t *testing.T) {
	srv := httptest.NewServer(Handler(func(c *Conn, _ *http.Request) { <-c.Done() }))
	defer srv.Close()

	client, err := Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Send(protocol.Ready{}), ErrClosed)
}
