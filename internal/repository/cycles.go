package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
)

var (
	ErrCycleNotFound   = errors.New("cycle not found")
	ErrInputAlreadySet = errors.New("partner input already submitted")
)

// CycleRepository is the durable record of a couple's weekly planning cycle.
// AcquireLock and ReclaimStaleLock are atomic conditional writes; they are
// the only serialization primitive the synthesis coordinator relies on, so
// they must never be reimplemented as a read followed by a write.
type CycleRepository interface {
	Create(ctx context.Context, cycle models.WeeklyCycle) (models.WeeklyCycle, error)
	FindByID(ctx context.Context, id string) (models.WeeklyCycle, error)
	FindByCoupleAndWeek(ctx context.Context, coupleID string, weekStartDate string) (models.WeeklyCycle, error)
	FindByCoupleID(ctx context.Context, coupleID string) ([]models.WeeklyCycle, error)

	SavePartnerInput(ctx context.Context, id string, slot models.PartnerSlot, input string) error

	AcquireLock(ctx context.Context, id string, at time.Time) (bool, error)
	ForceLock(ctx context.Context, id string, at time.Time) error
	ReleaseLock(ctx context.Context, id string) error
	ReclaimStaleLock(ctx context.Context, id string, staleBefore time.Time, at time.Time) (bool, error)
	ReleaseStaleLocks(ctx context.Context, staleBefore time.Time) (int64, error)

	SaveOutput(ctx context.Context, id string, outputJSON string, at time.Time) error

	RecordNudge(ctx context.Context, id string, at time.Time, cooldownBefore time.Time, maxCount int) (bool, error)
}

type SQLiteCycleRepository struct {
	database *sql.DB
}

func NewCycleRepository(database *sql.DB) *SQLiteCycleRepository {
	return &SQLiteCycleRepository{database: database}
}

const cycleColumns = `id, couple_id, week_start_date,
	partner_one_input, partner_two_input,
	generated_at, synthesized_output, completed_at,
	nudged_at, nudge_count, created_at, updated_at`

func (repository *SQLiteCycleRepository) Create(ctx context.Context, cycle models.WeeklyCycle) (models.WeeklyCycle, error) {
	if cycle.ID == "" {
		cycle.ID = uuid.New().String()
	}
	now := time.Now()
	cycle.CreatedAt = now
	cycle.UpdatedAt = now

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO weekly_cycles (id, couple_id, week_start_date, nudge_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		cycle.ID, cycle.CoupleID, cycle.WeekStartDate, cycle.CreatedAt, cycle.UpdatedAt,
	)
	if err != nil {
		return models.WeeklyCycle{}, fmt.Errorf("creating weekly cycle: %w", err)
	}
	return cycle, nil
}

func (repository *SQLiteCycleRepository) FindByID(ctx context.Context, id string) (models.WeeklyCycle, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+cycleColumns+" FROM weekly_cycles WHERE id = ?", id,
	)
	return scanCycle(row)
}

func (repository *SQLiteCycleRepository) FindByCoupleAndWeek(ctx context.Context, coupleID string, weekStartDate string) (models.WeeklyCycle, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+cycleColumns+" FROM weekly_cycles WHERE couple_id = ? AND week_start_date = ?",
		coupleID, weekStartDate,
	)
	return scanCycle(row)
}

func (repository *SQLiteCycleRepository) FindByCoupleID(ctx context.Context, coupleID string) ([]models.WeeklyCycle, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+cycleColumns+" FROM weekly_cycles WHERE couple_id = ? ORDER BY week_start_date DESC",
		coupleID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding cycles for couple: %w", err)
	}
	defer rows.Close()

	var cycles []models.WeeklyCycle
	for rows.Next() {
		var cycle models.WeeklyCycle
		if err := rows.Scan(
			&cycle.ID, &cycle.CoupleID, &cycle.WeekStartDate,
			&cycle.PartnerOneInput, &cycle.PartnerTwoInput,
			&cycle.GeneratedAt, &cycle.SynthesizedOutput, &cycle.CompletedAt,
			&cycle.NudgedAt, &cycle.NudgeCount, &cycle.CreatedAt, &cycle.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning weekly cycle: %w", err)
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

func scanCycle(row *sql.Row) (models.WeeklyCycle, error) {
	var cycle models.WeeklyCycle
	err := row.Scan(
		&cycle.ID, &cycle.CoupleID, &cycle.WeekStartDate,
		&cycle.PartnerOneInput, &cycle.PartnerTwoInput,
		&cycle.GeneratedAt, &cycle.SynthesizedOutput, &cycle.CompletedAt,
		&cycle.NudgedAt, &cycle.NudgeCount, &cycle.CreatedAt, &cycle.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WeeklyCycle{}, ErrCycleNotFound
	}
	if err != nil {
		return models.WeeklyCycle{}, fmt.Errorf("scanning weekly cycle: %w", err)
	}
	return cycle, nil
}

// SavePartnerInput writes one partner's input field. Each field is owned by
// exactly one partner and is write-once: the guarded update fails with
// ErrInputAlreadySet if the slot is already populated.
func (repository *SQLiteCycleRepository) SavePartnerInput(ctx context.Context, id string, slot models.PartnerSlot, input string) error {
	column := "partner_one_input"
	if slot == models.PartnerTwo {
		column = "partner_two_input"
	}

	result, err := repository.database.ExecContext(ctx,
		"UPDATE weekly_cycles SET "+column+" = ?, updated_at = ? WHERE id = ? AND "+column+" IS NULL",
		input, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("saving partner input: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking partner input write: %w", err)
	}
	if affected == 0 {
		if _, findErr := repository.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return ErrInputAlreadySet
	}
	return nil
}

// AcquireLock claims the synthesis lock with a compare-and-set: generated_at
// is written only while it is currently null. Returns false when a
// concurrent caller already holds the lock.
func (repository *SQLiteCycleRepository) AcquireLock(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE weekly_cycles SET generated_at = ?, updated_at = ? WHERE id = ? AND generated_at IS NULL",
		at, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("acquiring synthesis lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lock acquisition: %w", err)
	}
	return affected == 1, nil
}

// ForceLock unconditionally takes the lock and discards any prior output,
// used for an explicit user-initiated retry.
func (repository *SQLiteCycleRepository) ForceLock(ctx context.Context, id string, at time.Time) error {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE weekly_cycles
		SET generated_at = ?, synthesized_output = NULL, completed_at = NULL, updated_at = ?
		WHERE id = ?`,
		at, at, id,
	)
	if err != nil {
		return fmt.Errorf("force-acquiring synthesis lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking forced lock: %w", err)
	}
	if affected == 0 {
		return ErrCycleNotFound
	}
	return nil
}

// ReleaseLock clears generated_at after a failed attempt. The guard on
// synthesized_output keeps the output-implies-lock invariant: a completed
// cycle's lock is never released.
func (repository *SQLiteCycleRepository) ReleaseLock(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE weekly_cycles SET generated_at = NULL, updated_at = ? WHERE id = ? AND synthesized_output IS NULL",
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("releasing synthesis lock: %w", err)
	}
	return nil
}

// ReclaimStaleLock atomically steals a lock older than staleBefore that
// never produced output, covering invocations that crashed mid-synthesis.
func (repository *SQLiteCycleRepository) ReclaimStaleLock(ctx context.Context, id string, staleBefore time.Time, at time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE weekly_cycles SET generated_at = ?, updated_at = ?
		WHERE id = ? AND generated_at IS NOT NULL AND generated_at < ? AND synthesized_output IS NULL`,
		at, at, id, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("reclaiming stale lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking stale lock reclaim: %w", err)
	}
	return affected == 1, nil
}

func (repository *SQLiteCycleRepository) ReleaseStaleLocks(ctx context.Context, staleBefore time.Time) (int64, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE weekly_cycles SET generated_at = NULL, updated_at = ?
		WHERE generated_at IS NOT NULL AND generated_at < ? AND synthesized_output IS NULL`,
		time.Now(), staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("releasing stale locks: %w", err)
	}
	released, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting released locks: %w", err)
	}
	return released, nil
}

func (repository *SQLiteCycleRepository) SaveOutput(ctx context.Context, id string, outputJSON string, at time.Time) error {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE weekly_cycles SET synthesized_output = ?, completed_at = ?, updated_at = ? WHERE id = ?",
		outputJSON, at, at, id,
	)
	if err != nil {
		return fmt.Errorf("saving synthesized output: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking output write: %w", err)
	}
	if affected == 0 {
		return ErrCycleNotFound
	}
	return nil
}

// RecordNudge bumps the nudge counter if the cooldown has elapsed and the
// per-cycle cap is not reached. The guarded update doubles as the rate
// limiter, so two concurrent nudges cannot both pass the check.
func (repository *SQLiteCycleRepository) RecordNudge(ctx context.Context, id string, at time.Time, cooldownBefore time.Time, maxCount int) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE weekly_cycles SET nudged_at = ?, nudge_count = nudge_count + 1, updated_at = ?
		WHERE id = ? AND nudge_count < ? AND (nudged_at IS NULL OR nudged_at < ?)`,
		at, at, id, maxCount, cooldownBefore,
	)
	if err != nil {
		return false, fmt.Errorf("recording nudge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking nudge record: %w", err)
	}
	return affected == 1, nil
}
