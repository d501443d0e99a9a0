// Package sqlite persists the camp engine in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/event"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/summit.camp/internal/storage"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path and applies embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory() (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	// Every connection to :memory: gets its own database.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// PutCamp inserts or replaces a camp record.
func (s *Store) PutCamp(ctx context.Context, camp domain.Camp) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO camps (
    id, name, organizer, deposit_amount, min_participants, max_participants,
    signup_deadline, camp_start, camp_end, total_levels,
    state, refund_state, credential_mode, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    state = excluded.state,
    refund_state = excluded.refund_state,
    credential_mode = excluded.credential_mode,
    updated_at = excluded.updated_at`,
		camp.ID, camp.Name, camp.Organizer.String(), int64(camp.DepositAmount),
		camp.MinParticipants, camp.MaxParticipants,
		toMillis(camp.SignupDeadline), toMillis(camp.CampStart), toMillis(camp.CampEnd),
		camp.TotalLevels, string(camp.State), string(camp.RefundState),
		string(camp.CredentialMode), toMillis(camp.CreatedAt), toMillis(camp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put camp: %w", err)
	}
	return nil
}

func scanCamp(row interface{ Scan(...any) error }) (domain.Camp, error) {
	var (
		camp                                    domain.Camp
		organizer, state, refundState, mode     string
		deposit, deadline, start, end, cAt, uAt int64
	)
	err := row.Scan(
		&camp.ID, &camp.Name, &organizer, &deposit,
		&camp.MinParticipants, &camp.MaxParticipants,
		&deadline, &start, &end, &camp.TotalLevels,
		&state, &refundState, &mode, &cAt, &uAt,
	)
	if err != nil {
		return domain.Camp{}, err
	}
	camp.Organizer = identity.Address(organizer)
	camp.DepositAmount = domain.Amount(deposit)
	camp.SignupDeadline = fromMillis(deadline)
	camp.CampStart = fromMillis(start)
	camp.CampEnd = fromMillis(end)
	camp.State = domain.CampState(state)
	camp.RefundState = domain.RefundState(refundState)
	camp.CredentialMode = domain.CredentialMode(mode)
	camp.CreatedAt = fromMillis(cAt)
	camp.UpdatedAt = fromMillis(uAt)
	return camp, nil
}

const campColumns = `id, name, organizer, deposit_amount, min_participants, max_participants,
    signup_deadline, camp_start, camp_end, total_levels,
    state, refund_state, credential_mode, created_at, updated_at`

// GetCamp returns a camp record by id.
func (s *Store) GetCamp(ctx context.Context, id string) (domain.Camp, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+campColumns+` FROM camps WHERE id = ?`, id)
	camp, err := scanCamp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Camp{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Camp{}, fmt.Errorf("get camp: %w", err)
	}
	return camp, nil
}

// ListCamps returns all camps ordered by creation time.
func (s *Store) ListCamps(ctx context.Context) ([]domain.Camp, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+campColumns+` FROM camps ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list camps: %w", err)
	}
	defer rows.Close()

	camps := make([]domain.Camp, 0)
	for rows.Next() {
		camp, err := scanCamp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan camp: %w", err)
		}
		camps = append(camps, camp)
	}
	return camps, rows.Err()
}

func encodeLevels(levels map[int]struct{}) (string, error) {
	list := make([]int, 0, len(levels))
	for level := range levels {
		list = append(list, level)
	}
	sort.Ints(list)
	encoded, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode completed levels: %w", err)
	}
	return string(encoded), nil
}

func decodeLevels(encoded string) (map[int]struct{}, error) {
	var list []int
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil, fmt.Errorf("decode completed levels: %w", err)
	}
	levels := make(map[int]struct{}, len(list))
	for _, level := range list {
		levels[level] = struct{}{}
	}
	return levels, nil
}

// PutParticipant inserts or replaces a participant record.
func (s *Store) PutParticipant(ctx context.Context, participant domain.Participant) error {
	levels, err := encodeLevels(participant.CompletedLevels)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (
    camp_id, address, join_index, joined_at,
    deposit_locked, refunded, penalized, current_level, completed_levels
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (camp_id, address) DO UPDATE SET
    deposit_locked = excluded.deposit_locked,
    refunded = excluded.refunded,
    penalized = excluded.penalized,
    current_level = excluded.current_level,
    completed_levels = excluded.completed_levels`,
		participant.CampID, participant.Address.String(), participant.Index,
		toMillis(participant.JoinedAt), boolToInt(participant.DepositLocked),
		boolToInt(participant.Refunded), boolToInt(participant.Penalized),
		participant.CurrentLevel, levels,
	)
	if err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

const participantColumns = `camp_id, address, join_index, joined_at,
    deposit_locked, refunded, penalized, current_level, completed_levels`

func scanParticipant(row interface{ Scan(...any) error }) (domain.Participant, error) {
	var (
		p                          domain.Participant
		address, levels            string
		joined                     int64
		locked, refunded, penalize int
	)
	err := row.Scan(&p.CampID, &address, &p.Index, &joined, &locked, &refunded, &penalize, &p.CurrentLevel, &levels)
	if err != nil {
		return domain.Participant{}, err
	}
	p.Address = identity.Address(address)
	p.JoinedAt = fromMillis(joined)
	p.DepositLocked = locked != 0
	p.Refunded = refunded != 0
	p.Penalized = penalize != 0
	p.CompletedLevels, err = decodeLevels(levels)
	if err != nil {
		return domain.Participant{}, err
	}
	return p, nil
}

// GetParticipant returns a camp participant by address.
func (s *Store) GetParticipant(ctx context.Context, campID string, addr identity.Address) (domain.Participant, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE camp_id = ? AND address = ?`,
		campID, addr.String(),
	)
	participant, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return participant, nil
}

// ListParticipants returns a camp's participants ordered by join index.
func (s *Store) ListParticipants(ctx context.Context, campID string) ([]domain.Participant, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE camp_id = ? ORDER BY join_index`,
		campID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}

// CountParticipants returns the number of participants in a camp.
func (s *Store) CountParticipants(ctx context.Context, campID string) (int, error) {
	var count int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE camp_id = ?`, campID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// PutCredential stores a level commitment. Writes are append-only: the
// primary key rejects a second commitment for the same scope.
func (s *Store) PutCredential(ctx context.Context, credential domain.LevelCredential) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (
    camp_id, level, participant_scope, participant_index,
    commitment, salt, deadline, issued_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		credential.CampID, credential.Level, credential.ParticipantScope.String(),
		credential.ParticipantIndex, credential.Commitment, credential.Salt,
		toMillis(credential.Deadline), toMillis(credential.IssuedAt),
	)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

const credentialColumns = `camp_id, level, participant_scope, participant_index,
    commitment, salt, deadline, issued_at`

func scanCredential(row interface{ Scan(...any) error }) (domain.LevelCredential, error) {
	var (
		c                  domain.LevelCredential
		scope              string
		deadline, issuedAt int64
	)
	err := row.Scan(&c.CampID, &c.Level, &scope, &c.ParticipantIndex, &c.Commitment, &c.Salt, &deadline, &issuedAt)
	if err != nil {
		return domain.LevelCredential{}, err
	}
	c.ParticipantScope = identity.Address(scope)
	c.Deadline = fromMillis(deadline)
	c.IssuedAt = fromMillis(issuedAt)
	return c, nil
}

// GetCredential returns the credential for a (camp, level, scope) tuple.
func (s *Store) GetCredential(ctx context.Context, campID string, level int, scope identity.Address) (domain.LevelCredential, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE camp_id = ? AND level = ? AND participant_scope = ?`,
		campID, level, scope.String(),
	)
	credential, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LevelCredential{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.LevelCredential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListCredentials returns a camp's credentials ordered by level then scope.
func (s *Store) ListCredentials(ctx context.Context, campID string) ([]domain.LevelCredential, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE camp_id = ? ORDER BY level, participant_scope`,
		campID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]domain.LevelCredential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

// PutVerification stores an accepted verification record.
func (s *Store) PutVerification(ctx context.Context, record domain.VerificationRecord) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO verifications (camp_id, level, participant, verified_at, result)
VALUES (?, ?, ?, ?, ?)`,
		record.CampID, record.Level, record.Participant.String(),
		toMillis(record.VerifiedAt), string(record.Result),
	)
	if err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

// GetVerification returns the verification record for a participant level.
func (s *Store) GetVerification(ctx context.Context, campID string, level int, participant identity.Address) (domain.VerificationRecord, error) {
	var (
		record     domain.VerificationRecord
		addr       string
		verifiedAt int64
		result     string
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT camp_id, level, participant, verified_at, result FROM verifications
WHERE camp_id = ? AND level = ? AND participant = ?`,
		campID, level, participant.String(),
	)
	err := row.Scan(&record.CampID, &record.Level, &addr, &verifiedAt, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VerificationRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("get verification: %w", err)
	}
	record.Participant = identity.Address(addr)
	record.VerifiedAt = fromMillis(verifiedAt)
	record.Result = domain.VerificationResult(result)
	return record, nil
}

// ListVerifications returns a camp's verification records ordered by time.
func (s *Store) ListVerifications(ctx context.Context, campID string) ([]domain.VerificationRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT camp_id, level, participant, verified_at, result FROM verifications
WHERE camp_id = ? ORDER BY verified_at, level`,
		campID,
	)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	records := make([]domain.VerificationRecord, 0)
	for rows.Next() {
		var (
			record     domain.VerificationRecord
			addr       string
			verifiedAt int64
			result     string
		)
		if err := rows.Scan(&record.CampID, &record.Level, &addr, &verifiedAt, &result); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		record.Participant = identity.Address(addr)
		record.VerifiedAt = fromMillis(verifiedAt)
		record.Result = domain.VerificationResult(result)
		records = append(records, record)
	}
	return records, rows.Err()
}

// AppendEvent appends a single event to the camp journal.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	appended, err := s.AppendEvents(ctx, []event.Event{evt})
	if err != nil {
		return event.Event{}, err
	}
	return appended[0], nil
}

// AppendEvents appends a batch of events inside one transaction, assigning
// sequence numbers and content hashes. The batch commits as a whole: a
// failure on any event rolls back every event.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lastSeq := make(map[string]uint64)
	appended := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

		seq, ok := lastSeq[evt.CampID]
		if !ok {
			row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE camp_id = ?`, evt.CampID)
			if err := row.Scan(&seq); err != nil {
				return nil, fmt.Errorf("read last seq: %w", err)
			}
		}
		evt.Seq = seq + 1
		lastSeq[evt.CampID] = evt.Seq
		evt.Hash = event.ContentHash(evt)

		_, err = tx.ExecContext(ctx, `
INSERT INTO events (camp_id, seq, hash, timestamp, type, actor_type, actor_id, entity_type, entity_id, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.CampID, evt.Seq, evt.Hash, toMillis(evt.Timestamp), string(evt.Type),
			string(evt.ActorType), evt.ActorID, evt.EntityType, evt.EntityID, evt.PayloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		appended = append(appended, evt)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return appended, nil
}

// ListEvents returns a camp's events with Seq greater than afterSeq.
func (s *Store) ListEvents(ctx context.Context, campID string, afterSeq uint64, limit int) ([]event.Event, error) {
	query := `SELECT camp_id, seq, hash, timestamp, type, actor_type, actor_id, entity_type, entity_id, payload
FROM events WHERE camp_id = ? AND seq > ? ORDER BY seq`
	args := []any{campID, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0)
	for rows.Next() {
		var (
			evt              event.Event
			timestamp        int64
			evtType, actorTp string
		)
		err := rows.Scan(&evt.CampID, &evt.Seq, &evt.Hash, &timestamp, &evtType,
			&actorTp, &evt.ActorID, &evt.EntityType, &evt.EntityID, &evt.PayloadJSON)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		evt.Type = event.Type(evtType)
		evt.ActorType = event.ActorType(actorTp)
		events = append(events, evt)
	}
	return events, rows.Err()
}
