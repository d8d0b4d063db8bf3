package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SQLiteStore implements Store on database/sql with modernc.org/sqlite.
type SQLiteStore struct {
	base
	db *sql.DB
}

// NewSQLiteStore wraps an open, migrated sqlite database.
func NewSQLiteStore(log *slog.Logger, db *sql.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{base: newBase(log, opts), db: db}
}

const sqliteContactColumns = `id, telegram_id, name, context, COALESCE(birthday, ''), created_at, updated_at`

func (s *SQLiteStore) UpsertUser(ctx context.Context, user User) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, first_name, created_at, last_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET last_active = excluded.last_active`,
		user.ID, strings.TrimSpace(user.Username), strings.TrimSpace(user.FirstName), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (User, error) {
	var (
		user                  User
		createdAt, lastActive sqliteTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT telegram_id, username, first_name, created_at, last_active FROM users WHERE telegram_id = ?`, id,
	).Scan(&user.ID, &user.Username, &user.FirstName, &createdAt, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = createdAt.Time
	user.LastActive = lastActive.Time
	return user, nil
}

func (s *SQLiteStore) FindContact(ctx context.Context, userID int64, name string) (Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactColumns+`
		 FROM contacts
		 WHERE telegram_id = ? AND name_key = ?
		 ORDER BY (COALESCE(birthday, '') <> '') DESC, length(context) DESC, id ASC
		 LIMIT 1`,
		userID, nameKey(name),
	)
	contact, err := scanSQLiteContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return contact, nil
}

func (s *SQLiteStore) CreateContact(ctx context.Context, userID int64, name, note, birthday string) (Contact, error) {
	birthday, err := validateContactInput(name, note, birthday)
	if err != nil {
		return Contact{}, err
	}
	now := s.now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (telegram_id, name, name_key, context, birthday, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+sqliteContactColumns,
		userID, strings.TrimSpace(name), nameKey(name), s.entry(note), nullString(birthday), now.UTC(), now.UTC(),
	)
	contact, err := scanSQLiteContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return contact, nil
}

// AppendContact appends a timestamped entry in a single UPDATE so concurrent
// appends to one contact cannot lose each other's writes.
func (s *SQLiteStore) AppendContact(ctx context.Context, contactID int64, note, birthday string) (Contact, error) {
	if strings.TrimSpace(note) == "" {
		return Contact{}, fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	birthday, err := NormalizeBirthday(birthday)
	if err != nil {
		return Contact{}, err
	}
	entry := s.entry(note)
	row := s.db.QueryRowContext(ctx,
		`UPDATE contacts SET
		     context = CASE WHEN context = '' THEN ? ELSE context || ? END,
		     birthday = COALESCE(?, birthday),
		     updated_at = ?
		 WHERE id = ?
		 RETURNING `+sqliteContactColumns,
		entry, entrySeparator+entry, nullString(birthday), s.now().UTC(), contactID,
	)
	contact, err := scanSQLiteContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("append contact: %w", err)
	}
	return contact, nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, userID int64) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteContactColumns+` FROM contacts WHERE telegram_id = ? ORDER BY name_key, name, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return collectSQLiteContacts(rows)
}

func (s *SQLiteStore) UpcomingBirthdays(ctx context.Context, daysAhead int) ([]Upcoming, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteContactColumns+` FROM contacts WHERE birthday IS NOT NULL AND birthday <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("query birthdays: %w", err)
	}
	items, err := collectSQLiteContacts(rows)
	if err != nil {
		return nil, err
	}
	return collectUpcoming(s.logger, items, s.now(), daysAhead), nil
}

func (s *SQLiteStore) Stats(ctx context.Context, userID int64) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), count(CASE WHEN COALESCE(birthday, '') <> '' THEN 1 END)
		 FROM contacts WHERE telegram_id = ?`,
		userID,
	).Scan(&stats.Total, &stats.WithBirthdays)
	if err != nil {
		return Stats{}, fmt.Errorf("count contacts: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteContact(row rowScanner) (Contact, error) {
	var (
		contact              Contact
		createdAt, updatedAt sqliteTime
	)
	if err := row.Scan(&contact.ID, &contact.UserID, &contact.Name, &contact.Context, &contact.Birthday, &createdAt, &updatedAt); err != nil {
		return Contact{}, err
	}
	contact.CreatedAt = createdAt.Time
	contact.UpdatedAt = updatedAt.Time
	return contact, nil
}

func collectSQLiteContacts(rows *sql.Rows) ([]Contact, error) {
	defer rows.Close()
	items := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanSQLiteContact(rows)
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

// sqliteTime scans DATETIME columns whether the driver hands back a parsed
// time.Time or the stored text (RETURNING columns carry no declared type).
type sqliteTime struct {
	Time time.Time
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func (t *sqliteTime) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = value
		return nil
	case string:
		return t.parse(value)
	case []byte:
		return t.parse(string(value))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *sqliteTime) parse(value string) error {
	value = strings.TrimSpace(value)
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", value)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
