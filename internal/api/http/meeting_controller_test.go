package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
	"connectmeet/internal/meeting"
	"connectmeet/internal/repository"
	"connectmeet/internal/service"
	"connectmeet/internal/signal"
	"connectmeet/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type wsRig struct {
	records *meeting.Service
	signals *signal.Adapter
	server  *httptest.Server
}

func newWSRig(t *testing.T) *wsRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	records := meeting.NewService(st, testLogger())
	signals := signal.NewAdapter(st, testLogger())
	users := repository.NewInMemoryUserRepository()
	meetings := service.NewMeetingService(records, users, testLogger())
	ctrl := NewMeetingController(meetings, records, signals, testLogger())

	r := gin.New()
	r.GET("/api/meetings/:meetingID/ws", ctrl.Subscribe)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &wsRig{records: records, signals: signals, server: server}
}

func (rig *wsRig) dial(t *testing.T, meetingID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(rig.server.URL, "http") + "/api/meetings/" + meetingID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSubscribeDeliversEveryReplayedCandidate(t *testing.T) {
	rig := newWSRig(t)
	ctx := context.Background()

	_, err := rig.records.Create(ctx, "abc123", uuid.New(), "Ana")
	require.NoError(t, err)

	// more candidates than the socket's event buffer holds
	const total = 48
	for i := 0; i < total; i++ {
		require.NoError(t, rig.signals.AppendCandidate(ctx, "abc123", signal.SideOffer, domain.Candidate{
			Candidate: fmt.Sprintf("candidate:%d 1 udp 2122260223 192.0.2.1 50000 typ host", i),
		}))
	}

	conn := rig.dial(t, "abc123")

	got := make([]string, 0, total)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for len(got) < total {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type != "candidate" {
			continue
		}
		require.Equal(t, string(signal.SideOffer), ev.Side)
		require.NotNil(t, ev.Candidate)
		got = append(got, ev.Candidate.Candidate)
	}

	// every append arrives, in order
	for i, c := range got {
		require.Equal(t, fmt.Sprintf("candidate:%d 1 udp 2122260223 192.0.2.1 50000 typ host", i), c)
	}
}

func TestSubscribePublishesOfferFromSocket(t *testing.T) {
	rig := newWSRig(t)
	ctx := context.Background()

	_, err := rig.records.Create(ctx, "abc123", uuid.New(), "Ana")
	require.NoError(t, err)

	conn := rig.dial(t, "abc123")

	require.NoError(t, conn.WriteJSON(wsCommand{
		Type:        "offer",
		Description: &domain.Description{Type: "offer", SDP: "v=0 offer"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		require.NotEqual(t, "error", ev.Type)
		if ev.Type == "call" && ev.Call != nil && ev.Call.Offer != nil {
			require.Equal(t, "v=0 offer", ev.Call.Offer.SDP)
			break
		}
	}

	rec, err := rig.signals.ReadCall(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, rec.Offer)
}
