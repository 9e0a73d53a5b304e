package signal

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
	"connectmeet/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter() *Adapter {
	return NewAdapter(store.NewMemoryStore(), testLogger())
}

func TestReadCallNoOffer(t *testing.T) {
	a := newTestAdapter()

	_, err := a.ReadCall(context.Background(), "abc123")
	require.ErrorIs(t, err, ErrNoCall)
}

func TestPublishOfferSingleWinner(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	first := domain.Description{Type: "offer", SDP: "v=0 first"}
	second := domain.Description{Type: "offer", SDP: "v=0 second"}

	require.NoError(t, a.PublishOffer(ctx, "abc123", first))
	require.ErrorIs(t, a.PublishOffer(ctx, "abc123", second), ErrCallExists)

	rec, err := a.ReadCall(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, rec.Offer)
	require.Equal(t, "v=0 first", rec.Offer.SDP)
	require.Nil(t, rec.Answer)
}

func TestPublishAnswerPreservesOffer(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	offer := domain.Description{Type: "offer", SDP: "v=0 offer"}
	answer := domain.Description{Type: "answer", SDP: "v=0 answer"}

	require.NoError(t, a.PublishOffer(ctx, "abc123", offer))
	require.NoError(t, a.PublishAnswer(ctx, "abc123", answer))

	rec, err := a.ReadCall(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "v=0 offer", rec.Offer.SDP)
	require.NotNil(t, rec.Answer)
	require.Equal(t, "v=0 answer", rec.Answer.SDP)
}

func TestPublishAnswerWithoutCall(t *testing.T) {
	a := newTestAdapter()

	err := a.PublishAnswer(context.Background(), "abc123", domain.Description{Type: "answer", SDP: "v=0"})
	require.ErrorIs(t, err, ErrNoCall)
}

func TestSubscribeCallSeesAnswerArrive(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	require.NoError(t, a.PublishOffer(ctx, "abc123", domain.Description{Type: "offer", SDP: "v=0 offer"}))

	var mu sync.Mutex
	var records []*domain.CallRecord
	sub, err := a.SubscribeCall(ctx, "abc123", func(rec *domain.CallRecord) {
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, a.PublishAnswer(ctx, "abc123", domain.Description{Type: "answer", SDP: "v=0 answer"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, rec := range records {
			if rec != nil && rec.Answer != nil {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeCandidatesPerSide(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	mid := "0"
	cand := domain.Candidate{Candidate: "candidate:1 1 udp 2122260223 192.0.2.1 54321 typ host", SDPMid: &mid}

	var mu sync.Mutex
	var offerSide []domain.Candidate
	var answerSide []domain.Candidate

	offerSub, err := a.SubscribeCandidates(ctx, "abc123", SideOffer, func(c domain.Candidate) {
		mu.Lock()
		offerSide = append(offerSide, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer offerSub.Cancel()

	answerSub, err := a.SubscribeCandidates(ctx, "abc123", SideAnswer, func(c domain.Candidate) {
		mu.Lock()
		answerSide = append(answerSide, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer answerSub.Cancel()

	require.NoError(t, a.AppendCandidate(ctx, "abc123", SideOffer, cand))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(offerSide) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, cand.Candidate, offerSide[0].Candidate)
	require.NotNil(t, offerSide[0].SDPMid)
	require.Equal(t, "0", *offerSide[0].SDPMid)
	require.Empty(t, answerSide)
	mu.Unlock()
}

func TestSubscribeCandidatesReplaysEarlierAppends(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	early := domain.Candidate{Candidate: "candidate:early"}
	require.NoError(t, a.AppendCandidate(ctx, "abc123", SideOffer, early))

	var mu sync.Mutex
	var seen []domain.Candidate
	sub, err := a.SubscribeCandidates(ctx, "abc123", SideOffer, func(c domain.Candidate) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].Candidate == "candidate:early"
	}, 2*time.Second, 10*time.Millisecond)
}
