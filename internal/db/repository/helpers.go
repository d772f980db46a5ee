// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"retailmetrics/internal/domain"
)

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}

// encodeGranularities serializes the granularity list for storage.
// An empty or nil list stores as "[]".
func encodeGranularities(granularities []string) string {
	if len(granularities) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(granularities)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeGranularities(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// sqlPlaceholders returns n comma-separated "?" placeholders for IN lists.
func sqlPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
