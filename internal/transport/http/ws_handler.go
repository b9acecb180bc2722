package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"deckclash-challenge-service/internal/app"
	"deckclash-challenge-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.ChallengeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ChallengeService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type statusPayload struct {
	Status domain.PresenceStatus `json:"status"`
}

type timerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Phase         string `json:"phase"` // "answer" or "bait"
	Seconds       int    `json:"seconds"`
}

type fakePayload struct {
	QuestionIndex int    `json:"questionIndex"`
	FakeAnswer    string `json:"fakeAnswer"`
}

type answerPayload struct {
	QuestionIndex  int    `json:"questionIndex"`
	Answer         string `json:"answer"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

type settlePayload struct {
	QuestionIndex int `json:"questionIndex"`
}

type answerResult struct {
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	OwnFake       bool   `json:"ownFake"`
	PointsEarned  int    `json:"pointsEarned"`
	Answer        string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// challenge use cases. Clients connect with a join code; the first frames are
// the joined session and the initial channel snapshot (presence, timers,
// session state).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("userId")
	if code == "" || userID == "" {
		http.Error(w, "missing code or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Join(r.Context(), code, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), session.ID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(context.Background(), session.ID, userID)

	// Local mirror of channel presence; every sync frame replaces it.
	tracker := app.NewPresenceTracker(session.ID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Queue the joined frame before the pump starts so it always precedes
	// the first sync.
	send <- outboundMessage[any]{Type: "joined", Payload: session}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				tracker.ApplySync(update.Presence)
				select {
				case send <- outboundMessage[any]{Type: "sync", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), send, session, userID, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, send chan outboundMessage[any], session domain.Session, userID string, inbound inboundMessage) {
	fail := func(msg string) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
	}

	switch inbound.Type {
	case "ready":
		if err := h.service.MarkReady(ctx, session.ID, userID); err != nil {
			fail(err.Error())
		}

	case "start":
		if userID != session.HostID {
			fail("only the host can start the game")
			return
		}
		if err := h.service.StartGame(ctx, session.ID); err != nil {
			fail(err.Error())
		}

	case "advance":
		if userID != session.HostID {
			fail("only the host can advance questions")
			return
		}
		if _, _, err := h.service.AdvanceQuestion(ctx, session.ID); err != nil {
			fail(err.Error())
		}

	case "status":
		var payload statusPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid status payload")
			return
		}
		h.service.UpdatePlayerStatus(session.ID, userID, payload.Status)

	case "startTimer":
		var payload timerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid timer payload")
			return
		}
		duration := time.Duration(payload.Seconds) * time.Second
		var err error
		if payload.Phase == "bait" {
			_, err = h.service.StartBaitTimer(ctx, session.ID, payload.QuestionIndex, duration)
		} else {
			_, err = h.service.StartQuestionTimer(ctx, session.ID, payload.QuestionIndex, duration)
		}
		if err != nil {
			fail(err.Error())
		}

	case "stopTimer":
		var payload timerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid timer payload")
			return
		}
		var err error
		if payload.Phase == "bait" {
			err = h.service.StopBaitTimer(ctx, session.ID, payload.QuestionIndex)
		} else {
			err = h.service.StopQuestionTimer(ctx, session.ID, payload.QuestionIndex)
		}
		if err != nil {
			fail(err.Error())
		}

	case "fake":
		var payload fakePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid fake payload")
			return
		}
		if err := h.service.SubmitFakeAnswer(ctx, session.ID, userID, payload.QuestionIndex, payload.FakeAnswer); err != nil {
			fail(err.Error())
		}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid answer payload")
			return
		}
		result, err := h.recordAnswer(ctx, session.ID, userID, payload)
		if err != nil {
			fail(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "answerResult", Payload: result}

	case "settle":
		var payload settlePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid settle payload")
			return
		}
		// The player's decoy comes from the store, like correctness in
		// recordAnswer; the client never supplies it.
		fakeAnswer, err := h.service.FakeAnswerOf(ctx, session.ID, userID, payload.QuestionIndex)
		if err != nil {
			fail(err.Error())
			return
		}
		result, err := h.service.BetAndBaitResults(ctx, session.ID, payload.QuestionIndex, userID, fakeAnswer)
		if err != nil {
			fail(err.Error())
			return
		}
		if err := h.service.UpdateBaitScores(ctx, session.ID, userID, result); err != nil {
			fail(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "baitResult", Payload: result}

	default:
		fail("unsupported message type")
	}
}

// recordAnswer grades the submission against the stored question before
// handing it to the recorder: correctness and the self-bait flag are derived
// server-side, never trusted from the client.
func (h *WSHandler) recordAnswer(ctx context.Context, sessionID, userID string, payload answerPayload) (answerResult, error) {
	// A negative elapsed time would also poison the running average.
	if payload.ResponseTimeMs < 0 {
		payload.ResponseTimeMs = 0
	}

	question, err := h.service.Question(ctx, sessionID, payload.QuestionIndex)
	if err != nil {
		return answerResult{}, err
	}
	participant, err := h.service.Participant(ctx, sessionID, userID)
	if err != nil {
		return answerResult{}, err
	}

	isCorrect := payload.Answer == question.CorrectAnswer
	ownFake, err := h.service.IsOwnFakeAnswer(ctx, sessionID, userID, payload.QuestionIndex, payload.Answer)
	if err != nil {
		return answerResult{}, err
	}

	response, err := h.service.RecordResponse(ctx, sessionID, participant.ID, payload.QuestionIndex, payload.Answer, isCorrect, payload.ResponseTimeMs, ownFake)
	if err != nil {
		return answerResult{}, err
	}
	return answerResult{
		QuestionIndex: payload.QuestionIndex,
		Correct:       response.IsCorrect,
		OwnFake:       ownFake,
		PointsEarned:  response.PointsEarned,
		Answer:        response.Answer,
	}, nil
}
