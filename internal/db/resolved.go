package db

import (
	"context"
	"time"

	"house-prices/internal/models"
)

type resolvedRow struct {
	Site       string `db:"site"`
	AddressKey string `db:"address_key"`
	URL        string `db:"url"`
	ResolvedAt int64  `db:"resolved_at"`
}

func (r resolvedRow) entry() models.ResolvedEntry {
	return models.ResolvedEntry{
		Site:       r.Site,
		AddressKey: r.AddressKey,
		URL:        r.URL,
		ResolvedAt: time.UnixMilli(r.ResolvedAt).UTC(),
	}
}

// UpsertResolvedEntry stores e, replacing any entry for the same site and address
func (db *DB) UpsertResolvedEntry(ctx context.Context, e models.ResolvedEntry) error {
	query := `
		INSERT INTO resolved_urls (site, address_key, url, resolved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site, address_key) DO UPDATE SET
			url = excluded.url,
			resolved_at = excluded.resolved_at
	`
	_, err := db.ExecContext(ctx, query, e.Site, e.AddressKey, e.URL, e.ResolvedAt.UnixMilli())
	return err
}

// ListResolvedEntries returns every stored entry, expired or not
func (db *DB) ListResolvedEntries(ctx context.Context) ([]models.ResolvedEntry, error) {
	var rows []resolvedRow
	err := db.SelectContext(ctx, &rows, `
		SELECT site, address_key, url, resolved_at
		FROM resolved_urls
		ORDER BY site, address_key
	`)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ResolvedEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
	}
	return entries, nil
}

// GetResolvedEntry returns the stored entry for site and addressKey
func (db *DB) GetResolvedEntry(ctx context.Context, site, addressKey string) (models.ResolvedEntry, error) {
	var r resolvedRow
	err := db.GetContext(ctx, &r, `
		SELECT site, address_key, url, resolved_at
		FROM resolved_urls
		WHERE site = ? AND address_key = ?
	`, site, addressKey)
	if err != nil {
		return models.ResolvedEntry{}, err
	}
	return r.entry(), nil
}

// DeleteResolvedEntry removes one entry
func (db *DB) DeleteResolvedEntry(ctx context.Context, site, addressKey string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM resolved_urls WHERE site = ? AND address_key = ?", site, addressKey)
	return err
}

// DeleteExpired removes entries resolved before cutoff and returns how many went
func (db *DB) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM resolved_urls WHERE resolved_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountResolvedEntries returns the number of stored entries
func (db *DB) CountResolvedEntries(ctx context.Context) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM resolved_urls")
	return count, err
}
