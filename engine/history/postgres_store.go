package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compozy/webhookflow/engine/workflow"
)

const executionHistoryTable = "execution_history"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore is the production Store backend: one row per execution,
// keyed by execution_id, with the nested structures (context, action
// results, progress, metrics) stored as JSONB so Query/AggregateQuery can
// still filter on the flat columns (workflow_name, status, start_time)
// without a join.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. Schema migration is
// the caller's responsibility (CREATE TABLE execution_history ...); this
// type only issues DML.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type executionRow struct {
	ExecutionID   string    `db:"execution_id"`
	WorkflowName  string    `db:"workflow_name"`
	Status        string    `db:"status"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
	DurationMs    int64     `db:"duration_ms"`
	CurrentAction string    `db:"current_action"`
	Progress      []byte    `db:"progress"`
	Context       []byte    `db:"context"`
	ActionResults []byte    `db:"action_results"`
	Error         string    `db:"error"`
	Metrics       []byte    `db:"metrics"`
}

func (s *PostgresStore) Create(ctx context.Context, snapshot workflow.ExecutionSnapshot) error {
	row, err := toRow(snapshot)
	if err != nil {
		return fmt.Errorf("history: failed to encode snapshot: %w", err)
	}
	query, args, err := psql.Insert(executionHistoryTable).
		Columns(
			"execution_id", "workflow_name", "status", "start_time", "end_time",
			"duration_ms", "current_action", "progress", "context", "action_results", "error", "metrics",
		).
		Values(
			row.ExecutionID, row.WorkflowName, row.Status, row.StartTime, row.EndTime,
			row.DurationMs, row.CurrentAction, row.Progress, row.Context, row.ActionResults, row.Error, row.Metrics,
		).
		Suffix(`ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			duration_ms = EXCLUDED.duration_ms,
			current_action = EXCLUDED.current_action,
			progress = EXCLUDED.progress,
			context = EXCLUDED.context,
			action_results = EXCLUDED.action_results,
			error = EXCLUDED.error,
			metrics = EXCLUDED.metrics`).
		ToSql()
	if err != nil {
		return fmt.Errorf("history: failed to build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("history: failed to create execution row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, executionID string, patch Patch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history: failed to begin update transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var row executionRow
	selQuery, selArgs, err := psql.Select(
		"execution_id", "workflow_name", "status", "start_time", "end_time",
		"duration_ms", "current_action", "progress", "context", "action_results", "error", "metrics",
	).From(executionHistoryTable).Where(sq.Eq{"execution_id": executionID}).ToSql()
	if err != nil {
		return fmt.Errorf("history: failed to build select: %w", err)
	}
	if err := pgxscan.Get(ctx, tx, &row, selQuery, selArgs...); err != nil {
		if pgxscan.NotFound(err) {
			return nil
		}
		return fmt.Errorf("history: failed to load execution row: %w", err)
	}

	snapshot, err := fromRow(row)
	if err != nil {
		return fmt.Errorf("history: failed to decode snapshot: %w", err)
	}
	applyPatch(&snapshot, patch)
	updated, err := toRow(snapshot)
	if err != nil {
		return fmt.Errorf("history: failed to encode patched snapshot: %w", err)
	}

	updQuery, updArgs, err := psql.Update(executionHistoryTable).
		Set("status", updated.Status).
		Set("end_time", updated.EndTime).
		Set("current_action", updated.CurrentAction).
		Set("action_results", updated.ActionResults).
		Set("error", updated.Error).
		Where(sq.Eq{"execution_id": executionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("history: failed to build update: %w", err)
	}
	if _, err := tx.Exec(ctx, updQuery, updArgs...); err != nil {
		return fmt.Errorf("history: failed to apply update: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Query(ctx context.Context, filter Filter, page Page) (QueryResult, error) {
	builder := psql.Select(
		"execution_id", "workflow_name", "status", "start_time", "end_time",
		"duration_ms", "current_action", "progress", "context", "action_results", "error", "metrics",
	).From(executionHistoryTable)
	builder = applyFilter(builder, filter)

	countQuery, countArgs, err := psql.Select("count(*)").From(executionHistoryTable).
		Where(filterConds(filter)).ToSql()
	if err != nil {
		return QueryResult{}, fmt.Errorf("history: failed to build count query: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return QueryResult{}, fmt.Errorf("history: failed to count executions: %w", err)
	}

	builder = builder.OrderBy("start_time DESC")
	if page.Limit > 0 {
		builder = builder.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		builder = builder.Offset(uint64(page.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return QueryResult{}, fmt.Errorf("history: failed to build query: %w", err)
	}
	var rows []executionRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return QueryResult{}, fmt.Errorf("history: failed to query executions: %w", err)
	}
	snapshots := make([]workflow.ExecutionSnapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := fromRow(row)
		if err != nil {
			return QueryResult{}, fmt.Errorf("history: failed to decode execution row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return QueryResult{Snapshots: snapshots, Total: total}, nil
}

func (s *PostgresStore) AggregateQuery(ctx context.Context, filter Filter) (Aggregate, error) {
	res, err := s.Query(ctx, filter, Page{})
	if err != nil {
		return Aggregate{}, err
	}
	agg := Aggregate{Total: res.Total, PerHour: map[string]int{}, PerDay: map[string]int{}}
	if len(res.Snapshots) == 0 {
		return agg, nil
	}
	var succeeded int
	var totalDur time.Duration
	errCounts := map[string]int{}
	for _, snap := range res.Snapshots {
		if snap.Status == workflow.ExecCompleted {
			succeeded++
		}
		if !snap.EndTime.IsZero() {
			totalDur += snap.EndTime.Sub(snap.StartTime)
		}
		if snap.Error != "" {
			errCounts[snap.Error]++
		}
		agg.PerHour[snap.StartTime.Format("2006-01-02T15")]++
		agg.PerDay[snap.StartTime.Format("2006-01-02")]++
	}
	agg.SuccessRate = float64(succeeded) / float64(len(res.Snapshots))
	agg.AverageDuration = totalDur / time.Duration(len(res.Snapshots))
	agg.TopErrors = topErrors(errCounts, 10)
	return agg, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	query, args, err := psql.Delete(executionHistoryTable).
		Where(sq.Lt{"start_time": cutoff}).ToSql()
	if err != nil {
		return fmt.Errorf("history: failed to build delete: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("history: failed to delete old executions: %w", err)
	}
	return nil
}

func applyFilter(builder sq.SelectBuilder, filter Filter) sq.SelectBuilder {
	return builder.Where(filterConds(filter))
}

func filterConds(filter Filter) sq.And {
	conds := sq.And{}
	if filter.WorkflowName != "" {
		conds = append(conds, sq.Eq{"workflow_name": filter.WorkflowName})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, sq.Eq{"status": statuses})
	}
	if !filter.From.IsZero() {
		conds = append(conds, sq.GtOrEq{"start_time": filter.From})
	}
	if !filter.To.IsZero() {
		conds = append(conds, sq.LtOrEq{"start_time": filter.To})
	}
	return conds
}

func applyPatch(snapshot *workflow.ExecutionSnapshot, patch Patch) {
	if patch.Status != nil {
		snapshot.Status = *patch.Status
	}
	if patch.CurrentAction != nil {
		snapshot.CurrentAction = *patch.CurrentAction
	}
	if patch.ActionResults != nil {
		snapshot.ActionResults = patch.ActionResults
	}
	if patch.Error != nil {
		snapshot.Error = *patch.Error
	}
	if patch.EndTime != nil {
		snapshot.EndTime = *patch.EndTime
	}
}

func toRow(snapshot workflow.ExecutionSnapshot) (executionRow, error) {
	progress, err := json.Marshal(snapshot.Progress)
	if err != nil {
		return executionRow{}, err
	}
	execCtx, err := json.Marshal(snapshot.Context)
	if err != nil {
		return executionRow{}, err
	}
	results, err := json.Marshal(snapshot.ActionResults)
	if err != nil {
		return executionRow{}, err
	}
	metrics, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return executionRow{}, err
	}
	return executionRow{
		ExecutionID:   snapshot.ExecutionID,
		WorkflowName:  snapshot.WorkflowName,
		Status:        string(snapshot.Status),
		StartTime:     snapshot.StartTime,
		EndTime:       snapshot.EndTime,
		DurationMs:    snapshot.DurationMs,
		CurrentAction: snapshot.CurrentAction,
		Progress:      progress,
		Context:       execCtx,
		ActionResults: results,
		Error:         snapshot.Error,
		Metrics:       metrics,
	}, nil
}

func fromRow(row executionRow) (workflow.ExecutionSnapshot, error) {
	snapshot := workflow.ExecutionSnapshot{
		ExecutionID:   row.ExecutionID,
		WorkflowName:  row.WorkflowName,
		Status:        workflow.ExecutionStatus(row.Status),
		StartTime:     row.StartTime,
		EndTime:       row.EndTime,
		DurationMs:    row.DurationMs,
		CurrentAction: row.CurrentAction,
		Error:         row.Error,
	}
	if len(row.Progress) > 0 {
		if err := json.Unmarshal(row.Progress, &snapshot.Progress); err != nil {
			return snapshot, err
		}
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &snapshot.Context); err != nil {
			return snapshot, err
		}
	}
	if len(row.ActionResults) > 0 {
		if err := json.Unmarshal(row.ActionResults, &snapshot.ActionResults); err != nil {
			return snapshot, err
		}
	}
	if len(row.Metrics) > 0 {
		if err := json.Unmarshal(row.Metrics, &snapshot.Metrics); err != nil {
			return snapshot, err
		}
	}
	return snapshot, nil
}
