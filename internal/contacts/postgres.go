package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kithbot/kith/internal/db"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	base
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open, migrated postgres pool.
func NewPostgresStore(log *slog.Logger, pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{base: newBase(log, opts), pool: pool}
}

const pgContactColumns = `id, telegram_id, name, context, birthday, created_at, updated_at`

func (s *PostgresStore) UpsertUser(ctx context.Context, user User) error {
	now := s.now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (telegram_id, username, first_name, created_at, last_active)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (telegram_id) DO UPDATE SET last_active = EXCLUDED.last_active`,
		user.ID, strings.TrimSpace(user.Username), strings.TrimSpace(user.FirstName), now,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (User, error) {
	var (
		user       User
		lastActive pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx,
		`SELECT telegram_id, username, first_name, created_at, last_active FROM users WHERE telegram_id = $1`, id,
	).Scan(&user.ID, &user.Username, &user.FirstName, &user.CreatedAt, &lastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	user.LastActive = db.TimeFromPg(lastActive)
	return user, nil
}

func (s *PostgresStore) FindContact(ctx context.Context, userID int64, name string) (Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgContactColumns+`
		 FROM contacts
		 WHERE telegram_id = $1 AND name_key = $2
		 ORDER BY (birthday IS NOT NULL) DESC, length(context) DESC, id ASC
		 LIMIT 1`,
		userID, nameKey(name),
	)
	contact, err := scanPgContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return contact, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, userID int64, name, note, birthday string) (Contact, error) {
	birthday, err := validateContactInput(name, note, birthday)
	if err != nil {
		return Contact{}, err
	}
	date, err := db.DateFromString(birthday)
	if err != nil {
		return Contact{}, err
	}
	now := s.now()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO contacts (telegram_id, name, name_key, context, birthday, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING `+pgContactColumns,
		userID, strings.TrimSpace(name), nameKey(name), s.entry(note), date, now,
	)
	contact, err := scanPgContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return contact, nil
}

// AppendContact appends a timestamped entry in a single UPDATE so concurrent
// appends to one contact cannot lose each other's writes.
func (s *PostgresStore) AppendContact(ctx context.Context, contactID int64, note, birthday string) (Contact, error) {
	if strings.TrimSpace(note) == "" {
		return Contact{}, fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	birthday, err := NormalizeBirthday(birthday)
	if err != nil {
		return Contact{}, err
	}
	date, err := db.DateFromString(birthday)
	if err != nil {
		return Contact{}, err
	}
	entry := s.entry(note)
	row := s.pool.QueryRow(ctx,
		`UPDATE contacts SET
		     context = CASE WHEN context = '' THEN $1 ELSE context || $2 END,
		     birthday = COALESCE($3, birthday),
		     updated_at = $4
		 WHERE id = $5
		 RETURNING `+pgContactColumns,
		entry, entrySeparator+entry, date, s.now(), contactID,
	)
	contact, err := scanPgContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("append contact: %w", err)
	}
	return contact, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, userID int64) ([]Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgContactColumns+` FROM contacts WHERE telegram_id = $1 ORDER BY name_key, name, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return collectPgContacts(rows)
}

func (s *PostgresStore) UpcomingBirthdays(ctx context.Context, daysAhead int) ([]Upcoming, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgContactColumns+` FROM contacts WHERE birthday IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("query birthdays: %w", err)
	}
	items, err := collectPgContacts(rows)
	if err != nil {
		return nil, err
	}
	return collectUpcoming(s.logger, items, s.now(), daysAhead), nil
}

func (s *PostgresStore) Stats(ctx context.Context, userID int64) (Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(birthday) FROM contacts WHERE telegram_id = $1`,
		userID,
	).Scan(&stats.Total, &stats.WithBirthdays)
	if err != nil {
		return Stats{}, fmt.Errorf("count contacts: %w", err)
	}
	return stats, nil
}

func scanPgContact(row pgx.Row) (Contact, error) {
	var (
		contact   Contact
		birthday  pgtype.Date
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&contact.ID, &contact.UserID, &contact.Name, &contact.Context, &birthday, &contact.CreatedAt, &updatedAt); err != nil {
		return Contact{}, err
	}
	contact.Birthday = db.DateToString(birthday)
	contact.UpdatedAt = db.TimeFromPg(updatedAt)
	return contact, nil
}

func collectPgContacts(rows pgx.Rows) ([]Contact, error) {
	defer rows.Close()
	items := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanPgContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}
