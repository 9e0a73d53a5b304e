package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"connectmeet/internal/api/http/converter"
	"connectmeet/internal/domain"
	"connectmeet/internal/meeting"
	"connectmeet/internal/service"
	"connectmeet/internal/signal"
	"connectmeet/lib/logger/sl"
)

type MeetingController struct {
	meetings service.MeetingInteractor
	records  *meeting.Service
	signals  *signal.Adapter
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewMeetingController(meetings service.MeetingInteractor, records *meeting.Service, signals *signal.Adapter, log *slog.Logger) *MeetingController {
	if log == nil {
		log = slog.Default()
	}
	return &MeetingController{
		meetings: meetings,
		records:  records,
		signals:  signals,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *MeetingController) CreateMeeting(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	m, err := c.meetings.CreateMeeting(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"meeting": converter.MeetingToApi(m)})
}

func (c *MeetingController) GetMeeting(ctx *gin.Context) {
	m, err := c.meetings.GetMeeting(ctx.Request.Context(), ctx.Param("meetingID"))
	if err != nil {
		if errors.Is(err, domain.ErrMeetingNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(m)})
}

// CheckMeeting answers the "does this code exist" probe behind the join form.
func (c *MeetingController) CheckMeeting(ctx *gin.Context) {
	exists, err := c.meetings.CheckMeeting(ctx.Request.Context(), ctx.Param("meetingID"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (c *MeetingController) JoinMeeting(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	m, err := c.meetings.JoinMeeting(ctx.Request.Context(), ctx.Param("meetingID"), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMeetingNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrMeetingEnded):
			ctx.JSON(http.StatusGone, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(m)})
}

func (c *MeetingController) LeaveMeeting(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	if err := c.meetings.LeaveMeeting(ctx.Request.Context(), ctx.Param("meetingID"), userID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (c *MeetingController) EndMeeting(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	if err := c.meetings.EndMeeting(ctx.Request.Context(), ctx.Param("meetingID"), userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrMeetingNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotMeetingOwner):
			ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (c *MeetingController) ListParticipants(ctx *gin.Context) {
	participants, err := c.meetings.ListParticipants(ctx.Request.Context(), ctx.Param("meetingID"))
	if err != nil {
		if errors.Is(err, domain.ErrMeetingNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]converter.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, converter.ParticipantToApi(p))
	}
	ctx.JSON(http.StatusOK, gin.H{"participants": out})
}

type wsEvent struct {
	Type      string                     `json:"type"`
	Meeting   *converter.MeetingResponse `json:"meeting,omitempty"`
	Call      *domain.CallRecord         `json:"call,omitempty"`
	Side      string                     `json:"side,omitempty"`
	Candidate *domain.Candidate          `json:"candidate,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

type wsCommand struct {
	Type        string              `json:"type"`
	Description *domain.Description `json:"description,omitempty"`
	Side        string              `json:"side,omitempty"`
	Candidate   *domain.Candidate   `json:"candidate,omitempty"`
}

// Subscribe upgrades to a websocket and streams live meeting and call-setup
// state for the room: the meeting record, the call record and both candidate
// lists. Inbound messages publish the caller's own offer, answer and
// candidates, so a browser can run signaling entirely over this socket.
func (c *MeetingController) Subscribe(ctx *gin.Context) {
	meetingID := ctx.Param("meetingID")

	log := c.log.With(slog.String("op", "http.meeting.subscribe"), slog.String("meeting_id", meetingID))

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		ctx.String(http.StatusInternalServerError, "failed to upgrade connection")
		return
	}

	// push blocks when the buffer is full instead of dropping: a lost
	// candidate is never redelivered and would stall the remote's call
	// setup. The stop case releases publishers once the writer exits.
	events := make(chan wsEvent, 32)
	stop := make(chan struct{})
	push := func(ev wsEvent) {
		select {
		case events <- ev:
		case <-stop:
		}
	}

	reqCtx := ctx.Request.Context()

	meetingSub, err := c.records.Subscribe(reqCtx, meetingID, func(m *domain.Meeting) {
		if m == nil {
			push(wsEvent{Type: "meeting-ended"})
			return
		}
		push(wsEvent{Type: "meeting", Meeting: converter.MeetingToApi(m)})
	})
	if err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()})
		conn.Close()
		return
	}
	defer meetingSub.Cancel()

	callSub, err := c.signals.SubscribeCall(reqCtx, meetingID, func(rec *domain.CallRecord) {
		if rec == nil {
			push(wsEvent{Type: "call-removed"})
			return
		}
		push(wsEvent{Type: "call", Call: rec})
	})
	if err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()})
		conn.Close()
		return
	}
	defer callSub.Cancel()

	candSubs := make([]interface{ Cancel() }, 0, 2)
	for _, side := range []signal.Side{signal.SideOffer, signal.SideAnswer} {
		side := side
		sub, err := c.signals.SubscribeCandidates(reqCtx, meetingID, side, func(cand domain.Candidate) {
			push(wsEvent{Type: "candidate", Side: string(side), Candidate: &cand})
		})
		if err != nil {
			log.Warn("candidate subscription failed", slog.String("side", string(side)), sl.Err(err))
			continue
		}
		candSubs = append(candSubs, sub)
	}
	defer func() {
		for _, sub := range candSubs {
			sub.Cancel()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev := <-events:
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			close(stop)
			<-done
			conn.Close()
			return
		}

		if err := c.handleCommand(ctx, meetingID, cmd); err != nil {
			push(wsEvent{Type: "error", Error: err.Error()})
		}
	}
}

func (c *MeetingController) handleCommand(ctx *gin.Context, meetingID string, cmd wsCommand) error {
	switch cmd.Type {
	case "offer":
		if cmd.Description == nil {
			return errors.New("offer requires a description")
		}
		return c.signals.PublishOffer(ctx.Request.Context(), meetingID, *cmd.Description)
	case "answer":
		if cmd.Description == nil {
			return errors.New("answer requires a description")
		}
		return c.signals.PublishAnswer(ctx.Request.Context(), meetingID, *cmd.Description)
	case "candidate":
		if cmd.Candidate == nil {
			return errors.New("candidate payload is required")
		}
		side := signal.Side(cmd.Side)
		if side != signal.SideOffer && side != signal.SideAnswer {
			return errors.New("unknown candidate side: " + cmd.Side)
		}
		return c.signals.AppendCandidate(ctx.Request.Context(), meetingID, side, *cmd.Candidate)
	default:
		return errors.New("unsupported message type: " + cmd.Type)
	}
}
