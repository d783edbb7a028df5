package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
)

// Catalog is the single source of truth for image records, tags and their
// associations. One instance is shared by the whole process.
type Catalog struct {
	db *sql.DB
}

func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Init creates the schema. Tag links cascade with their image row, so a
// record delete is a single statement.
func (c *Catalog) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS images (
			id BIGSERIAL PRIMARY KEY,
			token TEXT UNIQUE NOT NULL,
			owner_id BIGINT,
			stored_name TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS image_tags (
			image_id BIGINT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
			tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (image_id, tag_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateImage inserts a record and fills in its id, access token and creation
// time. The token is generated once here and never changes.
func (c *Catalog) CreateImage(ctx context.Context, img *models.Image) error {
	img.Token = uuid.NewString()
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO images (token, owner_id, stored_name, display_name, content_type, size_bytes, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		img.Token, img.OwnerID, img.StoredName, img.DisplayName,
		img.ContentType, img.SizeBytes, img.SourceURL,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

const imageColumns = `id, token, owner_id, stored_name, display_name, content_type, size_bytes, source_url, created_at`

func scanImage(row interface{ Scan(...any) error }) (*models.Image, error) {
	var img models.Image
	err := row.Scan(&img.ID, &img.Token, &img.OwnerID, &img.StoredName,
		&img.DisplayName, &img.ContentType, &img.SizeBytes, &img.SourceURL, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// ImageByID returns (nil, nil) when no such record exists.
func (c *Catalog) ImageByID(ctx context.Context, id int64) (*models.Image, error) {
	img, err := scanImage(c.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return img, err
}

// ImageByToken returns (nil, nil) when no such record exists.
func (c *Catalog) ImageByToken(ctx context.Context, token string) (*models.Image, error) {
	img, err := scanImage(c.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return img, err
}

// DeleteImage removes a record and, via the schema cascade, its tag links.
// Deleting an id that is already gone is a no-op, so concurrent lazy deletes
// of the same stale record cannot fail each other.
func (c *Catalog) DeleteImage(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	return err
}

// ListByTags returns records carrying every named tag, newest first with id
// as the tiebreaker. An empty filter matches everything.
func (c *Catalog) ListByTags(ctx context.Context, tagNames []string) ([]*models.Image, error) {
	var rows *sql.Rows
	var err error
	if len(tagNames) == 0 {
		rows, err = c.db.QueryContext(ctx,
			`SELECT `+imageColumns+` FROM images ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = c.db.QueryContext(ctx, `
			SELECT `+imageColumns+` FROM images WHERE id IN (
				SELECT it.image_id FROM image_tags it
				JOIN tags t ON t.id = it.tag_id
				WHERE t.name = ANY($1)
				GROUP BY it.image_id
				HAVING COUNT(DISTINCT t.name) = $2
			)
			ORDER BY created_at DESC, id DESC`,
			pq.Array(tagNames), len(tagNames))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Random draws n records uniformly from the current matches of the filter.
// Each call is an independent draw against the live table.
func (c *Catalog) Random(ctx context.Context, tagNames []string, n int) ([]*models.Image, error) {
	var rows *sql.Rows
	var err error
	if len(tagNames) == 0 {
		rows, err = c.db.QueryContext(ctx,
			`SELECT `+imageColumns+` FROM images ORDER BY random() LIMIT $1`, n)
	} else {
		rows, err = c.db.QueryContext(ctx, `
			SELECT `+imageColumns+` FROM images WHERE id IN (
				SELECT it.image_id FROM image_tags it
				JOIN tags t ON t.id = it.tag_id
				WHERE t.name = ANY($1)
				GROUP BY it.image_id
				HAVING COUNT(DISTINCT t.name) = $2
			)
			ORDER BY random() LIMIT $3`,
			pq.Array(tagNames), len(tagNames), n)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}
