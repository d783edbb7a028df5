package catalog

import (
	"context"
	"fmt"

	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
)

// EnsureTags get-or-creates every named tag and returns them in input order.
// Names are expected to be normalized already.
func (c *Catalog) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	out := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		tag.Name = name
		// The do-nothing upsert would not return a row for an existing tag,
		// so update the name to itself to always get the id back.
		err := c.db.QueryRowContext(ctx, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name).Scan(&tag.ID)
		if err != nil {
			return nil, fmt.Errorf("ensure tag %q: %w", name, err)
		}
		out = append(out, tag)
	}
	return out, nil
}

// AttachTags links tags to an image. Re-attaching an existing link is a no-op.
func (c *Catalog) AttachTags(ctx context.Context, imageID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO image_tags (image_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, imageID, tagID)
		if err != nil {
			return fmt.Errorf("attach tag %d: %w", tagID, err)
		}
	}
	return nil
}

// TagsOf returns the tag names of one image, alphabetically.
func (c *Catalog) TagsOf(ctx context.Context, imageID int64) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN image_tags it ON it.tag_id = t.id
		WHERE it.image_id = $1
		ORDER BY t.name`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AllTags lists every tag. Orphaned tags are kept; they cost nothing.
func (c *Catalog) AllTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tagList []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tagList = append(tagList, tag)
	}
	return tagList, rows.Err()
}
