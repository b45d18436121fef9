package simulation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const dateLayout = "2006-01-02"

// simulationColumns is the column list for the simulations table. Kept
// explicit so schema changes surface as scan errors, not silent misreads.
const simulationColumns = `id, status, created_at, start_date, end_date, tickers, agent_ids, agent_results, error`

// Repository persists simulation results in sqlite. Per-agent results are
// stored as a single msgpack blob: they are written and read only by this
// process, and a run with many agents over a year of days is a large
// payload to keep as row-per-field.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new simulation repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "simulation").Logger(),
	}
}

// Save upserts a simulation result. The created_at, start_date and end_date
// of an existing row are preserved; status, tickers, agent results and error
// text are replaced.
func (r *Repository) Save(result *Result) error {
	tickersJSON, err := json.Marshal(result.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode tickers: %w", err)
	}
	agentIDsJSON, err := json.Marshal(result.AgentIDs)
	if err != nil {
		return fmt.Errorf("failed to encode agent ids: %w", err)
	}

	resultsBlob, err := msgpack.Marshal(result.AgentResults)
	if err != nil {
		return fmt.Errorf("failed to encode agent results: %w", err)
	}

	query := `
		INSERT INTO simulations
		(id, status, created_at, start_date, end_date, tickers, agent_ids, agent_results, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status        = excluded.status,
			tickers       = excluded.tickers,
			agent_results = excluded.agent_results,
			error         = excluded.error
	`

	_, err = r.db.Exec(query,
		result.ID,
		string(result.Status),
		result.CreatedAt.Unix(),
		result.StartDate.Format(dateLayout),
		result.EndDate.Format(dateLayout),
		string(tickersJSON),
		string(agentIDsJSON),
		resultsBlob,
		nullString(result.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save simulation %s: %w", result.ID, err)
	}

	r.log.Debug().
		Str("simulation_id", result.ID).
		Str("status", string(result.Status)).
		Msg("Simulation saved")

	return nil
}

// Get retrieves a simulation by ID. Returns (nil, nil) when not found.
func (r *Repository) Get(id string) (*Result, error) {
	query := "SELECT " + simulationColumns + " FROM simulations WHERE id = ?"

	result, err := r.scanResult(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get simulation %s: %w", id, err)
	}

	return result, nil
}

// List returns summaries of all simulations, most recent first.
func (r *Repository) List() ([]Summary, error) {
	query := `
		SELECT id, status, created_at, start_date, end_date, tickers, agent_ids
		FROM simulations
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var (
			s            Summary
			createdAt    int64
			startDate    string
			endDate      string
			tickersJSON  string
			agentIDsJSON string
		)
		if err := rows.Scan(&s.ID, &s.Status, &createdAt, &startDate, &endDate, &tickersJSON, &agentIDsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan simulation summary: %w", err)
		}

		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		if s.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
			return nil, fmt.Errorf("failed to parse start date %q: %w", startDate, err)
		}
		if s.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
			return nil, fmt.Errorf("failed to parse end date %q: %w", endDate, err)
		}
		if err := json.Unmarshal([]byte(tickersJSON), &s.Tickers); err != nil {
			return nil, fmt.Errorf("failed to decode tickers: %w", err)
		}
		if err := json.Unmarshal([]byte(agentIDsJSON), &s.AgentIDs); err != nil {
			return nil, fmt.Errorf("failed to decode agent ids: %w", err)
		}

		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate simulations: %w", err)
	}

	return summaries, nil
}

// DeleteTerminalBefore removes completed and failed runs created before the
// cutoff, returning the number of rows deleted. Pending and running rows are
// never touched.
func (r *Repository) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM simulations WHERE status IN (?, ?) AND created_at < ?`,
		string(StatusCompleted), string(StatusFailed), cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune simulations: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned simulations: %w", err)
	}

	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned old simulations")
	}
	return deleted, nil
}

func (r *Repository) scanResult(row *sql.Row) (*Result, error) {
	var (
		result       Result
		createdAt    int64
		startDate    string
		endDate      string
		tickersJSON  string
		agentIDsJSON string
		resultsBlob  []byte
		errText      sql.NullString
	)

	err := row.Scan(
		&result.ID,
		&result.Status,
		&createdAt,
		&startDate,
		&endDate,
		&tickersJSON,
		&agentIDsJSON,
		&resultsBlob,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	result.CreatedAt = time.Unix(createdAt, 0).UTC()
	if result.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("failed to parse start date %q: %w", startDate, err)
	}
	if result.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("failed to parse end date %q: %w", endDate, err)
	}
	if err := json.Unmarshal([]byte(tickersJSON), &result.Tickers); err != nil {
		return nil, fmt.Errorf("failed to decode tickers: %w", err)
	}
	if err := json.Unmarshal([]byte(agentIDsJSON), &result.AgentIDs); err != nil {
		return nil, fmt.Errorf("failed to decode agent ids: %w", err)
	}
	if len(resultsBlob) > 0 {
		if err := msgpack.Unmarshal(resultsBlob, &result.AgentResults); err != nil {
			return nil, fmt.Errorf("failed to decode agent results: %w", err)
		}
	}
	if result.AgentResults == nil {
		result.AgentResults = map[string]AgentResult{}
	}
	if errText.Valid {
		result.Error = errText.String
	}

	return &result, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
