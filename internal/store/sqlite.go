package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"looptv/internal/broadcast"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// entryOrder is the playback order: position ascending, with creation
// time and id as stable tiebreaks.
const entryOrder = "ORDER BY position ASC, created_at ASC, id ASC"

// SQLite is the durable store. It runs its embedded migrations on open,
// so a fresh database file is usable immediately.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and brings
// the schema up to date. Caller must Close when done.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite allows a single writer; serialize through one conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate.NewWithInstance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const channelColumns = "id, name, slug, description, is_active, created_at, updated_at"

func scanChannel(row interface{ Scan(...any) error }) (broadcast.Channel, error) {
	var ch broadcast.Channel
	var active int
	var created, updated int64
	if err := row.Scan(&ch.ID, &ch.Name, &ch.Slug, &ch.Description, &active, &created, &updated); err != nil {
		return broadcast.Channel{}, err
	}
	ch.IsActive = active != 0
	ch.CreatedAt = time.Unix(created, 0).UTC()
	ch.UpdatedAt = time.Unix(updated, 0).UTC()
	return ch, nil
}

// GetChannelBySlug implements broadcast.Repository.
func (s *SQLite) GetChannelBySlug(ctx context.Context, slug string) (broadcast.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE slug = ?", slug)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return broadcast.Channel{}, broadcast.ErrChannelNotFound
	}
	if err != nil {
		return broadcast.Channel{}, fmt.Errorf("GetChannelBySlug: %w", err)
	}
	return ch, nil
}

// ListEntries implements broadcast.Repository.
func (s *SQLite) ListEntries(ctx context.Context, channelID string) ([]broadcast.PlaylistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, channel_id, video_url, title, duration, position, created_at "+
			"FROM playlist_videos WHERE channel_id = ? "+entryOrder, channelID)
	if err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	defer rows.Close()

	var out []broadcast.PlaylistEntry
	for rows.Next() {
		var e broadcast.PlaylistEntry
		var dur sql.NullInt64
		var created int64
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.VideoURL, &e.Title, &dur, &e.Position, &created); err != nil {
			return nil, fmt.Errorf("ListEntries scan: %w", err)
		}
		if dur.Valid {
			d := dur.Int64
			e.Duration = &d
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEntries rows: %w", err)
	}
	return out, nil
}

// ListChannels returns all channels ordered by creation time.
func (s *SQLite) ListChannels(ctx context.Context) ([]broadcast.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+channelColumns+" FROM channels ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	var out []broadcast.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("ListChannels scan: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListChannels rows: %w", err)
	}
	return out, nil
}

// GetChannel returns the channel with the given id.
func (s *SQLite) GetChannel(ctx context.Context, id string) (broadcast.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE id = ?", id)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return broadcast.Channel{}, broadcast.ErrChannelNotFound
	}
	if err != nil {
		return broadcast.Channel{}, fmt.Errorf("GetChannel: %w", err)
	}
	return ch, nil
}

// CreateChannel stores a new channel, assigning id and timestamps.
func (s *SQLite) CreateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error) {
	now := time.Now().UTC()
	ch.ID = uuid.NewString()
	ch.CreatedAt = now
	ch.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO channels ("+channelColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		ch.ID, ch.Name, ch.Slug, ch.Description, boolToInt(ch.IsActive), now.Unix(), now.Unix())
	if isUniqueViolation(err, "channels.slug") {
		return broadcast.Channel{}, broadcast.ErrSlugTaken
	}
	if err != nil {
		return broadcast.Channel{}, fmt.Errorf("CreateChannel: %w", err)
	}
	return ch, nil
}

// UpdateChannel replaces the mutable fields of an existing channel.
func (s *SQLite) UpdateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE channels SET name = ?, slug = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?",
		ch.Name, ch.Slug, ch.Description, boolToInt(ch.IsActive), now.Unix(), ch.ID)
	if isUniqueViolation(err, "channels.slug") {
		return broadcast.Channel{}, broadcast.ErrSlugTaken
	}
	if err != nil {
		return broadcast.Channel{}, fmt.Errorf("UpdateChannel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return broadcast.Channel{}, broadcast.ErrChannelNotFound
	}
	return s.GetChannel(ctx, ch.ID)
}

// DeleteChannel removes a channel; its playlist rows cascade.
func (s *SQLite) DeleteChannel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteChannel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return broadcast.ErrChannelNotFound
	}
	return nil
}

// GetEntry returns the playlist entry with the given id.
func (s *SQLite) GetEntry(ctx context.Context, id string) (broadcast.PlaylistEntry, error) {
	var e broadcast.PlaylistEntry
	var dur sql.NullInt64
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, channel_id, video_url, title, duration, position, created_at "+
			"FROM playlist_videos WHERE id = ?", id).
		Scan(&e.ID, &e.ChannelID, &e.VideoURL, &e.Title, &dur, &e.Position, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return broadcast.PlaylistEntry{}, broadcast.ErrEntryNotFound
	}
	if err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("GetEntry: %w", err)
	}
	if dur.Valid {
		d := dur.Int64
		e.Duration = &d
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

// AddEntry stores a new playlist entry, assigning id and creation time.
// A negative position appends at the end of the playlist.
func (s *SQLite) AddEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("AddEntry begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM channels WHERE id = ?", e.ChannelID).Scan(&exists); err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("AddEntry channel check: %w", err)
	}
	if exists == 0 {
		return broadcast.PlaylistEntry{}, broadcast.ErrChannelNotFound
	}

	if e.Position < 0 {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_videos WHERE channel_id = ?",
			e.ChannelID).Scan(&e.Position); err != nil {
			return broadcast.PlaylistEntry{}, fmt.Errorf("AddEntry next position: %w", err)
		}
	}

	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	var dur sql.NullInt64
	if e.Duration != nil {
		dur = sql.NullInt64{Int64: *e.Duration, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO playlist_videos (id, channel_id, video_url, title, duration, position, created_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.ChannelID, e.VideoURL, e.Title, dur, e.Position, e.CreatedAt.Unix()); err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("AddEntry insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("AddEntry commit: %w", err)
	}
	return e, nil
}

// UpdateEntry replaces the mutable fields of an existing entry.
func (s *SQLite) UpdateEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error) {
	var dur sql.NullInt64
	if e.Duration != nil {
		dur = sql.NullInt64{Int64: *e.Duration, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE playlist_videos SET video_url = ?, title = ?, duration = ?, position = ? WHERE id = ?",
		e.VideoURL, e.Title, dur, e.Position, e.ID)
	if err != nil {
		return broadcast.PlaylistEntry{}, fmt.Errorf("UpdateEntry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return broadcast.PlaylistEntry{}, broadcast.ErrEntryNotFound
	}
	return s.GetEntry(ctx, e.ID)
}

// DeleteEntry removes a playlist entry.
func (s *SQLite) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM playlist_videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteEntry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return broadcast.ErrEntryNotFound
	}
	return nil
}

// ReorderEntries assigns positions 0..n-1 to the listed entries in the
// given order inside one transaction. Any unknown or foreign id rolls
// the whole batch back.
func (s *SQLite) ReorderEntries(ctx context.Context, channelID string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReorderEntries begin: %w", err)
	}
	defer tx.Rollback()

	for pos, id := range orderedIDs {
		res, err := tx.ExecContext(ctx,
			"UPDATE playlist_videos SET position = ? WHERE id = ? AND channel_id = ?",
			pos, id, channelID)
		if err != nil {
			return fmt.Errorf("ReorderEntries update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return broadcast.ErrEntryNotFound
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReorderEntries commit: %w", err)
	}
	return nil
}

// ActiveChannelCount returns the number of channels with the active
// flag set. Used for metrics.
func (s *SQLite) ActiveChannelCount() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM channels WHERE is_active = 1").Scan(&n); err != nil {
		return 0
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+constraint)
}
