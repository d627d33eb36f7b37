// Package catalog records completed encodes in Postgres so uploaded
// containers can be found again.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Encode is one catalog row.
type Encode struct {
	ID          string
	ObjectKey   string
	Source      string
	Title       string
	Artist      string
	Album       string
	Application string
	// Bitrate is in bits per second.
	Bitrate    int
	SampleRate int
	Channels   int
	FrameSize  int
	Frames     int64
	Packets    int64
	Bytes      int64
	CreatedAt  time.Time
}

type EncodePersister interface {
	Save(ctx context.Context, encode Encode) error
}

type EncodeLister interface {
	List(ctx context.Context, limit int) ([]Encode, error)
}

type PostgresEncodeRepository struct {
	db *pgxpool.Pool
}

func NewPostgresEncodeRepository(db *pgxpool.Pool) *PostgresEncodeRepository {
	return &PostgresEncodeRepository{db: db}
}

func EncodeToRowParams(encode Encode) []any {
	return []any{
		encode.ID,
		encode.ObjectKey,
		encode.Source,
		encode.Title,
		encode.Artist,
		encode.Album,
		encode.Application,
		encode.Bitrate,
		encode.SampleRate,
		encode.Channels,
		encode.FrameSize,
		encode.Frames,
		encode.Packets,
		encode.Bytes,
	}
}

func (r *PostgresEncodeRepository) Save(ctx context.Context, encode Encode) error {
	const query = `
	INSERT INTO dca_encode (
		id, object_key, source, title, artist, album, application,
		bitrate, sample_rate, channels, frame_size, frames, packets, bytes
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO UPDATE SET
		object_key = EXCLUDED.object_key,
		frames = EXCLUDED.frames,
		packets = EXCLUDED.packets,
		bytes = EXCLUDED.bytes
	`

	if _, err := r.db.Exec(ctx, query, EncodeToRowParams(encode)...); err != nil {
		return fmt.Errorf("failed to save encode %s: %w", encode.ID, err)
	}
	return nil
}

// List returns up to limit encodes, newest first.
func (r *PostgresEncodeRepository) List(ctx context.Context, limit int) ([]Encode, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	const query = `
	SELECT id::text, object_key, source, title, artist, album, application,
		bitrate, sample_rate, channels, frame_size, frames, packets, bytes, created_at
	FROM dca_encode
	ORDER BY created_at DESC, id
	LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list encodes: %w", err)
	}

	encodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Encode, error) {
		var e Encode
		err := row.Scan(
			&e.ID, &e.ObjectKey, &e.Source, &e.Title, &e.Artist, &e.Album, &e.Application,
			&e.Bitrate, &e.SampleRate, &e.Channels, &e.FrameSize, &e.Frames, &e.Packets, &e.Bytes,
			&e.CreatedAt,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan encodes: %w", err)
	}
	return encodes, nil
}

var (
	_ EncodePersister = (*PostgresEncodeRepository)(nil)
	_ EncodeLister    = (*PostgresEncodeRepository)(nil)
)
