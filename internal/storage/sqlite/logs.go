package sqlite

import (
	"fmt"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/storage/models"
)

// LogRequest stores a request log entry
func (s *Storage) LogRequest(log *models.RequestLog) error {
	if log == nil || log.RequestID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	if log.ID == "" {
		log.ID = generateID("log")
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	// Stored timestamps are compared as text, so keep them in one zone.
	log.CreatedAt = log.CreatedAt.UTC()

	_, err := s.db.Exec(`
		INSERT INTO request_logs (id, request_id, model, provider, key_fingerprint,
			prompt_tokens, completion_tokens, total_tokens, status_code,
			finish_reason, error_message, mid_stream_error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.RequestID, log.Model, log.Provider, nullString(log.KeyFingerprint),
		log.PromptTokens, log.CompletionTokens, log.TotalTokens, log.StatusCode,
		nullString(log.FinishReason), nullString(log.ErrorMessage), boolToInt(log.MidStreamError),
		log.DurationMs, log.CreatedAt)

	return err
}

// GetRequestLogs retrieves request logs with filtering, newest first
func (s *Storage) GetRequestLogs(filter models.LogFilter) ([]*models.RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	query := `SELECT id, request_id, model, provider, COALESCE(key_fingerprint, ''),
		prompt_tokens, completion_tokens, total_tokens, status_code,
		COALESCE(finish_reason, ''), COALESCE(error_message, ''), mid_stream_error,
		duration_ms, created_at
		FROM request_logs WHERE 1=1`

	var args []any

	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}
	if filter.Provider != "" {
		query += " AND provider = ?"
		args = append(args, filter.Provider)
	}
	if filter.StatusCode != nil {
		query += " AND status_code = ?"
		args = append(args, *filter.StatusCode)
	}
	if filter.StartDate != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.RequestLog
	for rows.Next() {
		var log models.RequestLog
		var midStream int

		err := rows.Scan(&log.ID, &log.RequestID, &log.Model, &log.Provider, &log.KeyFingerprint,
			&log.PromptTokens, &log.CompletionTokens, &log.TotalTokens, &log.StatusCode,
			&log.FinishReason, &log.ErrorMessage, &midStream,
			&log.DurationMs, &log.CreatedAt)
		if err != nil {
			return nil, err
		}

		log.MidStreamError = midStream == 1
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// DeleteRequestLogs removes logs older than the specified date (YYYY-MM-DD)
func (s *Storage) DeleteRequestLogs(olderThan string) (int64, error) {
	if _, err := time.Parse(time.DateOnly, olderThan); err != nil {
		return 0, fmt.Errorf("%w: date %q", ErrInvalidInput, olderThan)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStorageClosed
	}

	result, err := s.db.Exec("DELETE FROM request_logs WHERE created_at < ?", olderThan)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
