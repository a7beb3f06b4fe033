package store

import (
	"context"
	"fmt"
	"time"
)

// IncrementCounter atomically increments (creating if absent) the counter
// for (table, subject, windowStart) and returns the post-increment value.
// table is the tier and window name (e.g. "rl_default_minute"); every
// tier and window shares one physical table.
func (s *SQLStore) IncrementCounter(ctx context.Context, table, subject string, windowStart time.Time) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO rate_limit_counters (bucket_table, subject, window_start, count)
		VALUES (%s, %s, %s, 1)
		ON CONFLICT (bucket_table, subject, window_start) DO UPDATE SET count = rate_limit_counters.count + 1
	`, s.ph(1), s.ph(2), s.ph(3))

	_, err := s.db.ExecContext(ctx, query, table, subject, windowStart.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT count FROM rate_limit_counters WHERE bucket_table = %s AND subject = %s AND window_start = %s
	`, s.ph(1), s.ph(2), s.ph(3))
	var count int
	if err := s.db.QueryRowContext(ctx, selectQuery, table, subject, windowStart.UTC().Format(time.RFC3339Nano)).Scan(&count); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return count, nil
}

// DecrementCounter undoes a prior IncrementCounter for (table, subject,
// windowStart), floored at zero. The RateLimit pipeline stage calls this when
// the wrapped handler returned a non-2xx response, so failed requests never
// consume a caller's quota.
func (s *SQLStore) DecrementCounter(ctx context.Context, table, subject string, windowStart time.Time) error {
	query := fmt.Sprintf(`
		UPDATE rate_limit_counters SET count = CASE WHEN count > 0 THEN count - 1 ELSE 0 END
		WHERE bucket_table = %s AND subject = %s AND window_start = %s
	`, s.ph(1), s.ph(2), s.ph(3))

	_, err := s.db.ExecContext(ctx, query, table, subject, windowStart.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("decrement counter: %w", err)
	}
	return nil
}
