// Package signal reads and writes call-setup state through the shared
// document store: one call record per room holding the offer and answer
// descriptions, plus two append-only candidate lists, one per side.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"connectmeet/internal/domain"
	"connectmeet/internal/store"
)

const callCollection = "calls"

// Side identifies which participant a candidate list belongs to.
type Side string

const (
	SideOffer  Side = "offerCandidates"
	SideAnswer Side = "answerCandidates"
)

var (
	// ErrCallExists is returned by PublishOffer when another participant's
	// offer already won the record. The caller treats this as losing the
	// create race, not as a storage failure.
	ErrCallExists = errors.New("call record already exists")
	ErrNoCall     = errors.New("no active call found")
)

type Adapter struct {
	store store.Store
	log   *slog.Logger
}

func NewAdapter(st store.Store, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{store: st, log: log}
}

// PublishOffer creates the call record for the room with the offering
// side's description. Exactly one offer author wins a given record.
func (a *Adapter) PublishOffer(ctx context.Context, roomID string, desc domain.Description) error {
	doc, err := json.Marshal(domain.CallRecord{Offer: &desc})
	if err != nil {
		return err
	}

	if err := a.store.Create(ctx, callCollection, roomID, doc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrCallExists
		}
		return fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}
	return nil
}

// PublishAnswer sets the answering side's description on an existing call
// record. The offer is preserved.
func (a *Adapter) PublishAnswer(ctx context.Context, roomID string, desc domain.Description) error {
	err := a.store.Update(ctx, callCollection, roomID, func(doc []byte) ([]byte, error) {
		var rec domain.CallRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, err
		}
		rec.Answer = &desc
		return json.Marshal(rec)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoCall
		}
		return fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}
	return nil
}

// ReadCall fetches the current call record, or ErrNoCall when the room has
// no offer yet.
func (a *Adapter) ReadCall(ctx context.Context, roomID string) (*domain.CallRecord, error) {
	doc, err := a.store.Get(ctx, callCollection, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoCall
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}

	var rec domain.CallRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, err
	}
	if rec.Offer == nil {
		return nil, ErrNoCall
	}
	return &rec, nil
}

// AppendCandidate trickles one locally-discovered candidate onto the given
// side's list. Candidates are immutable once written.
func (a *Adapter) AppendCandidate(ctx context.Context, roomID string, side Side, cand domain.Candidate) error {
	item, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	if err := a.store.Append(ctx, callCollection, roomID, string(side), item); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}
	return nil
}

// SubscribeCall delivers the call record on every change. A nil record means
// the document does not exist (yet, or anymore).
func (a *Adapter) SubscribeCall(ctx context.Context, roomID string, onChange func(rec *domain.CallRecord)) (store.Subscription, error) {
	sub, err := a.store.Subscribe(ctx, callCollection, roomID, func(doc []byte, exists bool) {
		if !exists {
			onChange(nil)
			return
		}
		var rec domain.CallRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			a.log.Error("malformed call record", slog.String("room_id", roomID))
			return
		}
		onChange(&rec)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}
	return sub, nil
}

// SubscribeCandidates delivers candidates appended to the given side's list
// as they are observed. Only additions are ever delivered.
func (a *Adapter) SubscribeCandidates(ctx context.Context, roomID string, side Side, onAdded func(cand domain.Candidate)) (store.Subscription, error) {
	sub, err := a.store.SubscribeList(ctx, callCollection, roomID, string(side), func(item []byte) {
		var cand domain.Candidate
		if err := json.Unmarshal(item, &cand); err != nil {
			a.log.Error("malformed candidate", slog.String("room_id", roomID), slog.String("side", string(side)))
			return
		}
		onAdded(cand)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingUnavailable, err)
	}
	return sub, nil
}
