package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic(false)
	assert.False(t, s.Online())

	s.Set(false)
	select {
	case <-s.Changes():
		t.Fatal("no transition expected when the state is unchanged")
	default:
	}

	s.Set(true)
	assert.True(t, s.Online())
	select {
	case online := <-s.Changes():
		assert.True(t, online)
	default:
		t.Fatal("expected a transition")
	}
}

func TestStatic_FullChannelKeepsLatest(t *testing.T) {
	s := NewStatic(false)
	for i := 0; i < 20; i++ {
		s.Set(i%2 == 0)
	}

	var last bool
	for {
		select {
		case v := <-s.Changes():
			last = v
			continue
		default:
		}
		break
	}
	assert.Equal(t, s.Online(), last)
}

func TestProbe(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	p := NewProbe(origin.URL, time.Second, origin.Client())
	ctx := context.Background()

	require.True(t, p.Check(ctx), "any response means reachable")
	assert.True(t, <-p.Changes())

	origin.Close()
	assert.False(t, p.Check(ctx))
	assert.False(t, p.Online())
	assert.False(t, <-p.Changes())
}

func TestProbe_RunStopsOnCancel(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer origin.Close()

	p := NewProbe(origin.URL, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.True(t, <-p.Changes())
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
