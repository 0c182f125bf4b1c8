package data

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

var stateQueries = map[string]string{
	"runs":       "SELECT COUNT(*) FROM run",
	"scores":     "SELECT COUNT(*) FROM score",
	"entities":   "SELECT COUNT(DISTINCT entity) FROM score",
	"classes":    "SELECT COUNT(DISTINCT class) FROM score",
	"class_mean": "SELECT COUNT(*) FROM class_mean",
}

// GetDataState returns the row counts of the stored runs.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	keys := make([]string, 0, len(stateQueries))
	for k := range stateQueries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	state := make(map[string]int64, len(keys))
	for _, k := range keys {
		count, err := getCount(db, stateQueries[k])
		if err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}

func getCount(db *sql.DB, query string) (int64, error) {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}
	return count, nil
}
