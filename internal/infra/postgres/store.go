package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deckclash-challenge-service/internal/domain"
	"github.com/uptrace/bun"
)

// Store is the bun-backed implementation of app.Store. Uniqueness constraints
// in the schema carry the core's idempotency: duplicate inserts surface as
// domain.ErrDuplicate, and the three Update* operations run as single
// statements so they stay atomic without explicit locks.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:challenge_sessions"`

	ID                   string     `bun:"id,pk"`
	HostID               string     `bun:"host_id,notnull"`
	Code                 string     `bun:"code,notnull"`
	DeckID               string     `bun:"deck_id,notnull"`
	Status               string     `bun:"status,notnull"`
	CurrentQuestionIndex int        `bun:"current_question_index,notnull"`
	QuestionCount        int        `bun:"question_count,notnull"`
	StartedAt            *time.Time `bun:"started_at"`
	CreatedAt            time.Time  `bun:"created_at,notnull"`
}

type questionRecord struct {
	bun.BaseModel `bun:"table:challenge_questions"`

	ID              string     `bun:"id,pk"`
	SessionID       string     `bun:"session_id,notnull"`
	QuestionIndex   int        `bun:"question_index,notnull"`
	Prompt          string     `bun:"prompt,notnull"`
	CorrectAnswer   string     `bun:"correct_answer,notnull"`
	WrongOption1    string     `bun:"wrong_option_1,notnull,default:''"`
	WrongOption2    string     `bun:"wrong_option_2,notnull,default:''"`
	WrongOption3    string     `bun:"wrong_option_3,notnull,default:''"`
	AnswerStartedAt *time.Time `bun:"answer_started_at"`
	AnswerEndsAt    *time.Time `bun:"answer_ends_at"`
	AnswerRunning   bool       `bun:"answer_running,notnull,default:false"`
	BaitStartedAt   *time.Time `bun:"bait_started_at"`
	BaitEndsAt      *time.Time `bun:"bait_ends_at"`
	BaitRunning     bool       `bun:"bait_running,notnull,default:false"`
	BaitCompleted   bool       `bun:"bait_completed,notnull,default:false"`
}

type participantRecord struct {
	bun.BaseModel `bun:"table:challenge_participants"`

	ID            string    `bun:"id,pk"`
	SessionID     string    `bun:"session_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	IsReady       bool      `bun:"is_ready,notnull,default:false"`
	Score         int       `bun:"score,notnull,default:0"`
	CorrectCount  int       `bun:"correct_count,notnull,default:0"`
	AnsweredCount int       `bun:"answered_count,notnull,default:0"`
	AvgResponseMs int64     `bun:"avg_response_ms,notnull,default:0"`
	Rank          int       `bun:"rank,notnull,default:0"`
	JoinedAt      time.Time `bun:"joined_at,notnull"`
}

type responseRecord struct {
	bun.BaseModel `bun:"table:challenge_responses"`

	ID             string    `bun:"id,pk"`
	SessionID      string    `bun:"session_id,notnull"`
	ParticipantID  string    `bun:"participant_id,notnull"`
	QuestionIndex  int       `bun:"question_index,notnull"`
	Answer         string    `bun:"answer,notnull"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	ResponseTimeMs int64     `bun:"response_time_ms,notnull"`
	PointsEarned   int       `bun:"points_earned,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

type baitRecord struct {
	bun.BaseModel `bun:"table:bait_answers"`

	SessionID     string    `bun:"session_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	QuestionIndex int       `bun:"question_index,notnull"`
	FakeAnswer    string    `bun:"fake_answer,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	rec := sessionRecord{
		ID:                   session.ID,
		HostID:               session.HostID,
		Code:                 session.Code,
		DeckID:               session.DeckID,
		Status:               string(session.Status),
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		QuestionCount:        session.QuestionCount,
		StartedAt:            session.StartedAt,
		CreatedAt:            session.CreatedAt,
	}
	res, err := s.db.NewInsert().Model(&rec).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var rec sessionRecord
	err := s.db.NewSelect().Model(&rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return sessionFromRecord(rec), nil
}

func (s *Store) GetSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	var rec sessionRecord
	err := s.db.NewSelect().Model(&rec).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session by code: %w", err)
	}
	return sessionFromRecord(rec), nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	return s.db.NewSelect().Model((*sessionRecord)(nil)).Where("code = ?", code).Exists(ctx)
}

func (s *Store) SetSessionStatus(ctx context.Context, id string, status domain.SessionStatus, startedAt *time.Time) error {
	q := s.db.NewUpdate().Model((*sessionRecord)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id)
	if startedAt != nil {
		q = q.Set("started_at = ?", *startedAt)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) AdvanceQuestion(ctx context.Context, id string) (int, error) {
	var next int
	err := s.db.NewRaw(
		`UPDATE challenge_sessions
		 SET current_question_index = current_question_index + 1
		 WHERE id = ? AND current_question_index + 1 < question_count
		 RETURNING current_question_index`, id,
	).Scan(ctx, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrQuestionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("advance question: %w", err)
	}
	return next, nil
}

func (s *Store) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.NewUpdate().Model((*sessionRecord)(nil)).
		Set("status = ?", string(domain.SessionExpired)).
		Where("status = ?", string(domain.SessionWaiting)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) CreateQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	recs := make([]questionRecord, 0, len(questions))
	for _, q := range questions {
		recs = append(recs, questionRecord{
			ID:            q.ID,
			SessionID:     q.SessionID,
			QuestionIndex: q.Index,
			Prompt:        q.Prompt,
			CorrectAnswer: q.CorrectAnswer,
			WrongOption1:  q.WrongOptions[0],
			WrongOption2:  q.WrongOptions[1],
			WrongOption3:  q.WrongOptions[2],
		})
	}
	if _, err := s.db.NewInsert().Model(&recs).Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, sessionID string, index int) (domain.Question, error) {
	var rec questionRecord
	err := s.db.NewSelect().Model(&rec).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question: %w", err)
	}
	return questionFromRecord(rec), nil
}

func (s *Store) SetAnswerTimer(ctx context.Context, sessionID string, index int, timer domain.PhaseTimer) error {
	res, err := s.db.NewUpdate().Model((*questionRecord)(nil)).
		Set("answer_started_at = ?", timer.StartedAt).
		Set("answer_ends_at = ?", timer.EndsAt).
		Set("answer_running = ?", timer.Running).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update answer timer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) SetBaitTimer(ctx context.Context, sessionID string, index int, timer domain.PhaseTimer) error {
	res, err := s.db.NewUpdate().Model((*questionRecord)(nil)).
		Set("bait_started_at = ?", timer.StartedAt).
		Set("bait_ends_at = ?", timer.EndsAt).
		Set("bait_running = ?", timer.Running).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update bait timer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) FinalizeWrongOptions(ctx context.Context, sessionID string, index int, options [domain.WrongOptionCount]string) error {
	// The bait_completed guard makes the options write-once; redundant
	// finalize attempts from concurrent clients fall through harmlessly.
	_, err := s.db.NewUpdate().Model((*questionRecord)(nil)).
		Set("wrong_option_1 = ?", options[0]).
		Set("wrong_option_2 = ?", options[1]).
		Set("wrong_option_3 = ?", options[2]).
		Set("bait_completed = TRUE").
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Where("bait_completed = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize options: %w", err)
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, participant *domain.Participant) error {
	rec := participantRecord{
		ID:            participant.ID,
		SessionID:     participant.SessionID,
		UserID:        participant.UserID,
		IsReady:       participant.IsReady,
		Score:         participant.Score,
		CorrectCount:  participant.CorrectCount,
		AnsweredCount: participant.AnsweredCount,
		AvgResponseMs: participant.AvgResponseMs,
		Rank:          participant.Rank,
		JoinedAt:      participant.JoinedAt,
	}
	res, err := s.db.NewInsert().Model(&rec).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	var rec participantRecord
	err := s.db.NewSelect().Model(&rec).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return participantFromRecord(rec), nil
}

func (s *Store) GetParticipantByID(ctx context.Context, participantID string) (domain.Participant, error) {
	var rec participantRecord
	err := s.db.NewSelect().Model(&rec).Where("id = ?", participantID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return participantFromRecord(rec), nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var recs []participantRecord
	err := s.db.NewSelect().Model(&recs).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, participantFromRecord(rec))
	}
	return out, nil
}

func (s *Store) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	return s.db.NewSelect().Model((*participantRecord)(nil)).
		Where("session_id = ?", sessionID).
		Count(ctx)
}

func (s *Store) CountReady(ctx context.Context, sessionID string) (int, error) {
	return s.db.NewSelect().Model((*participantRecord)(nil)).
		Where("session_id = ?", sessionID).
		Where("is_ready = TRUE").
		Count(ctx)
}

func (s *Store) SetReady(ctx context.Context, sessionID, userID string) error {
	res, err := s.db.NewUpdate().Model((*participantRecord)(nil)).
		Set("is_ready = TRUE").
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set ready: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.NewDelete().Model((*participantRecord)(nil)).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

func (s *Store) UpdateParticipantScore(ctx context.Context, sessionID, userID string, delta int) error {
	res, err := s.db.NewUpdate().Model((*participantRecord)(nil)).
		Set("score = score + ?", delta).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) UpdateParticipantStats(ctx context.Context, participantID string, points int, isCorrect bool, responseTimeMs int64) error {
	correct := 0
	if isCorrect {
		correct = 1
	}
	res, err := s.db.NewUpdate().Model((*participantRecord)(nil)).
		Set("score = score + ?", points).
		Set("correct_count = correct_count + ?", correct).
		Set("avg_response_ms = (avg_response_ms * answered_count + ?) / (answered_count + 1)", responseTimeMs).
		Set("answered_count = answered_count + 1").
		Where("id = ?", participantID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) UpdateSessionRankings(ctx context.Context, sessionID string) error {
	_, err := s.db.NewRaw(
		`UPDATE challenge_participants AS p
		 SET rank = ranked.position
		 FROM (
		   SELECT id, ROW_NUMBER() OVER (
		     ORDER BY score DESC, avg_response_ms ASC, user_id ASC
		   ) AS position
		   FROM challenge_participants
		   WHERE session_id = ?
		 ) AS ranked
		 WHERE p.id = ranked.id`, sessionID,
	).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update rankings: %w", err)
	}
	return nil
}

func (s *Store) InsertResponse(ctx context.Context, response *domain.Response) error {
	rec := responseRecord{
		ID:             response.ID,
		SessionID:      response.SessionID,
		ParticipantID:  response.ParticipantID,
		QuestionIndex:  response.QuestionIndex,
		Answer:         response.Answer,
		IsCorrect:      response.IsCorrect,
		ResponseTimeMs: response.ResponseTimeMs,
		PointsEarned:   response.PointsEarned,
		CreatedAt:      response.CreatedAt,
	}
	res, err := s.db.NewInsert().Model(&rec).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *Store) GetResponse(ctx context.Context, sessionID, participantID string, index int) (domain.Response, error) {
	var rec responseRecord
	err := s.db.NewSelect().Model(&rec).
		Where("session_id = ?", sessionID).
		Where("participant_id = ?", participantID).
		Where("question_index = ?", index).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("select response: %w", err)
	}
	return responseFromRecord(rec), nil
}

func (s *Store) ListResponses(ctx context.Context, sessionID string, index int) ([]domain.Response, error) {
	var recs []responseRecord
	err := s.db.NewSelect().Model(&recs).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := make([]domain.Response, 0, len(recs))
	for _, rec := range recs {
		out = append(out, responseFromRecord(rec))
	}
	return out, nil
}

func (s *Store) InsertBaitAnswer(ctx context.Context, answer *domain.BetAndBaitAnswer) error {
	rec := baitRecord{
		SessionID:     answer.SessionID,
		UserID:        answer.UserID,
		QuestionIndex: answer.QuestionIndex,
		FakeAnswer:    answer.FakeAnswer,
		CreatedAt:     answer.CreatedAt,
	}
	res, err := s.db.NewInsert().Model(&rec).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert bait answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *Store) GetBaitAnswer(ctx context.Context, sessionID, userID string, index int) (domain.BetAndBaitAnswer, error) {
	var rec baitRecord
	err := s.db.NewSelect().Model(&rec).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Where("question_index = ?", index).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BetAndBaitAnswer{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.BetAndBaitAnswer{}, fmt.Errorf("select bait answer: %w", err)
	}
	return domain.BetAndBaitAnswer{
		SessionID:     rec.SessionID,
		UserID:        rec.UserID,
		QuestionIndex: rec.QuestionIndex,
		FakeAnswer:    rec.FakeAnswer,
		CreatedAt:     rec.CreatedAt,
	}, nil
}

func (s *Store) CountBaitAnswers(ctx context.Context, sessionID string, index int) (int, error) {
	return s.db.NewSelect().Model((*baitRecord)(nil)).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Count(ctx)
}

func (s *Store) ListBaitAnswers(ctx context.Context, sessionID string, index int) ([]domain.BetAndBaitAnswer, error) {
	var recs []baitRecord
	err := s.db.NewSelect().Model(&recs).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Order("created_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bait answers: %w", err)
	}
	out := make([]domain.BetAndBaitAnswer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.BetAndBaitAnswer{
			SessionID:     rec.SessionID,
			UserID:        rec.UserID,
			QuestionIndex: rec.QuestionIndex,
			FakeAnswer:    rec.FakeAnswer,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) DeleteBaitAnswers(ctx context.Context, sessionID string, index int) error {
	_, err := s.db.NewDelete().Model((*baitRecord)(nil)).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", index).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete bait answers: %w", err)
	}
	return nil
}

func sessionFromRecord(rec sessionRecord) domain.Session {
	return domain.Session{
		ID:                   rec.ID,
		HostID:               rec.HostID,
		Code:                 rec.Code,
		DeckID:               rec.DeckID,
		Status:               domain.SessionStatus(rec.Status),
		CurrentQuestionIndex: rec.CurrentQuestionIndex,
		QuestionCount:        rec.QuestionCount,
		StartedAt:            rec.StartedAt,
		CreatedAt:            rec.CreatedAt,
	}
}

func questionFromRecord(rec questionRecord) domain.Question {
	return domain.Question{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		Index:         rec.QuestionIndex,
		Prompt:        rec.Prompt,
		CorrectAnswer: rec.CorrectAnswer,
		WrongOptions:  [domain.WrongOptionCount]string{rec.WrongOption1, rec.WrongOption2, rec.WrongOption3},
		AnswerTimer:   timerFromColumns(rec.AnswerStartedAt, rec.AnswerEndsAt, rec.AnswerRunning),
		BaitTimer:     timerFromColumns(rec.BaitStartedAt, rec.BaitEndsAt, rec.BaitRunning),
		BaitCompleted: rec.BaitCompleted,
	}
}

func timerFromColumns(startedAt, endsAt *time.Time, running bool) domain.PhaseTimer {
	timer := domain.PhaseTimer{Running: running}
	if startedAt != nil {
		timer.StartedAt = *startedAt
	}
	if endsAt != nil {
		timer.EndsAt = *endsAt
	}
	return timer
}

func participantFromRecord(rec participantRecord) domain.Participant {
	return domain.Participant{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		UserID:        rec.UserID,
		IsReady:       rec.IsReady,
		Score:         rec.Score,
		CorrectCount:  rec.CorrectCount,
		AnsweredCount: rec.AnsweredCount,
		AvgResponseMs: rec.AvgResponseMs,
		Rank:          rec.Rank,
		JoinedAt:      rec.JoinedAt,
	}
}

func responseFromRecord(rec responseRecord) domain.Response {
	return domain.Response{
		ID:             rec.ID,
		SessionID:      rec.SessionID,
		ParticipantID:  rec.ParticipantID,
		QuestionIndex:  rec.QuestionIndex,
		Answer:         rec.Answer,
		IsCorrect:      rec.IsCorrect,
		ResponseTimeMs: rec.ResponseTimeMs,
		PointsEarned:   rec.PointsEarned,
		CreatedAt:      rec.CreatedAt,
	}
}
