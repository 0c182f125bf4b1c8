package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/belong/pkg/bi"
	"gonum.org/v1/gonum/stat"
)

const (
	ModeMatrix  = "matrix"
	ModeProfile = "profile"

	runLimitDefault = 20
	timeFormat      = time.RFC3339

	insertRunSQL = `INSERT INTO run (id, created_at, mode, source, classification, entities, classes, mean, bin_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertScoreSQL = `INSERT INTO score (run_id, entity, class, bi, same, considered, window_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	insertClassMeanSQL = `INSERT INTO class_mean (run_id, class, members, mean, stddev)
		VALUES (?, ?, ?, ?, ?)
	`

	selectRunsSQL = `SELECT id, created_at, mode, source, classification, entities, classes, mean, bin_size
		FROM run
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	selectRunSQL = `SELECT id, created_at, mode, source, classification, entities, classes, mean, bin_size
		FROM run
		WHERE id = ?
	`

	selectScoresSQL = `SELECT entity, class, bi, same, considered, window_size
		FROM score
		WHERE run_id = ?
		ORDER BY entity
	`

	selectClassMeansSQL = `SELECT class, members, mean, stddev
		FROM class_mean
		WHERE run_id = ?
		ORDER BY class
	`

	deleteRunScoresSQL = `DELETE FROM score WHERE run_id = ?`
	deleteRunMeansSQL  = `DELETE FROM class_mean WHERE run_id = ?`
	deleteRunSQL       = `DELETE FROM run WHERE id = ?`
)

var ErrRunNotFound = errors.New("run not found")

// Run describes one belonging index calculation.
type Run struct {
	ID             string    `json:"id" yaml:"id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	Mode           string    `json:"mode" yaml:"mode"`
	Source         string    `json:"source" yaml:"source"`
	Classification string    `json:"classification" yaml:"classification"`
	Entities       int       `json:"entities" yaml:"entities"`
	Classes        int       `json:"classes" yaml:"classes"`
	Mean           float64   `json:"mean" yaml:"mean"`
	BinSize        float64   `json:"bin_size" yaml:"bin_size"`
}

// NewRun creates a run with a new ID and the default histogram bin size.
func NewRun(mode, source, classification string) *Run {
	return &Run{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Mode:           mode,
		Source:         source,
		Classification: classification,
		BinSize:        bi.DefaultBinSize,
	}
}

// Tally sets the entity and class counts and the overall mean BI of the run.
func (r *Run) Tally(rs *bi.ResultSet, summaries []*bi.ClassSummary) {
	r.Entities = rs.Len()
	r.Classes = len(summaries)
	r.Mean = 0
	if vals := rs.Values(); len(vals) > 0 {
		r.Mean = stat.Mean(vals, nil)
	}
}

// SaveRun stores the run together with its scores and class summaries in a
// single transaction. Entity, class and mean totals are taken from the data.
func SaveRun(db *sql.DB, run *Run, rs *bi.ResultSet, summaries []*bi.ClassSummary) error {
	if db == nil {
		return ErrDBNotInitialized
	}
	if run == nil || run.ID == "" {
		return errors.New("run with ID required")
	}
	if rs == nil {
		return errors.New("result set required")
	}

	run.Tally(rs, summaries)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := saveRunTx(tx, run, rs, summaries); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w (cause: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func saveRunTx(tx *sql.Tx, run *Run, rs *bi.ResultSet, summaries []*bi.ClassSummary) error {
	if _, err := tx.Exec(insertRunSQL, run.ID, run.CreatedAt.Format(timeFormat), run.Mode,
		run.Source, run.Classification, run.Entities, run.Classes, run.Mean, run.BinSize); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	scoreStmt, err := tx.Prepare(insertScoreSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert statement: %w", err)
	}
	defer scoreStmt.Close()

	for _, s := range rs.Scores() {
		if _, err := scoreStmt.Exec(run.ID, s.ID, s.Label, s.Value, s.Same, s.Considered, s.Window); err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", s.ID, err)
		}
	}

	meanStmt, err := tx.Prepare(insertClassMeanSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare class mean insert statement: %w", err)
	}
	defer meanStmt.Close()

	for _, cs := range summaries {
		if _, err := meanStmt.Exec(run.ID, cs.Label, cs.Count, cs.Mean, cs.StdDev); err != nil {
			return fmt.Errorf("failed to insert class mean for %s: %w", cs.Label, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	var created string
	if err := row.Scan(&r.ID, &created, &r.Mode, &r.Source, &r.Classification,
		&r.Entities, &r.Classes, &r.Mean, &r.BinSize); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}

// ListRuns returns the most recent runs first.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	if limit <= 0 {
		limit = runLimitDefault
	}

	rows, err := db.Query(selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute run select statement: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}

// GetRun returns a single run by ID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	r, err := scanRun(db.QueryRow(selectRunSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return r, nil
}

// GetRunScores rebuilds the result set of a stored run.
func GetRunScores(db *sql.DB, id string) (*bi.ResultSet, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	rows, err := db.Query(selectScoresSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to execute score select statement: %w", err)
	}
	defer rows.Close()

	rs, _ := bi.NewResultSet()
	for rows.Next() {
		s := &bi.Score{}
		if err := rows.Scan(&s.ID, &s.Label, &s.Value, &s.Same, &s.Considered, &s.Window); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := rs.Add(s); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return rs, nil
}

// GetRunMeans returns the stored class summaries of a run sorted by class.
func GetRunMeans(db *sql.DB, id string) ([]*bi.ClassSummary, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	rows, err := db.Query(selectClassMeansSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to execute class mean select statement: %w", err)
	}
	defer rows.Close()

	list := make([]*bi.ClassSummary, 0)
	for rows.Next() {
		cs := &bi.ClassSummary{}
		if err := rows.Scan(&cs.Label, &cs.Count, &cs.Mean, &cs.StdDev); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate class means: %w", err)
	}
	return list, nil
}

// DeleteRun removes the run with its scores and class means.
func DeleteRun(db *sql.DB, id string) error {
	if db == nil {
		return ErrDBNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, q := range []string{deleteRunScoresSQL, deleteRunMeansSQL} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("failed to delete run %s data: %w", id, err)
		}
	}

	res, err := tx.Exec(deleteRunSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
