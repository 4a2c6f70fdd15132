package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/model"
)

// ProfileRepo implements ProfileRepository using PostgreSQL.
// Configs are stored as JSONB, the credential is sealed per user.
type ProfileRepo struct {
	db     *DB
	sealer CredentialSealer
}

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB, sealer CredentialSealer) *ProfileRepo {
	return &ProfileRepo{db: db, sealer: sealer}
}

// FindByID selects a profile by user id.
func (r *ProfileRepo) FindByID(ctx context.Context, id int64) (*model.UserProfile, error) {
	const q = `
SELECT id, created_at, enabled, credential_enc, configs
FROM profiles WHERE id=$1`
	var (
		p       model.UserProfile
		created time.Time
		sealed  []byte
		raw     []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &created, &p.Enabled, &sealed, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Created = created

	if len(sealed) > 0 {
		plain, err := r.sealer.Open(p.ID, sealed)
		if err != nil {
			return nil, fmt.Errorf("open credential: %w", err)
		}
		p.Credential = string(plain)
	}

	p.Configs = map[string]model.LangConfig{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.Configs); err != nil {
			return nil, fmt.Errorf("decode configs: %w", err)
		}
	}
	return &p, nil
}

// Upsert inserts a profile never stored before (zero Created) or updates an existing one.
func (r *ProfileRepo) Upsert(ctx context.Context, p *model.UserProfile) error {
	var sealed []byte
	if p.Credential != "" {
		s, err := r.sealer.Seal(p.ID, []byte(p.Credential))
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		sealed = s
	}
	configs := p.Configs
	if configs == nil {
		configs = map[string]model.LangConfig{}
	}
	raw, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("encode configs: %w", err)
	}

	if p.Created.IsZero() {
		const ins = `
INSERT INTO profiles (id, enabled, credential_enc, configs)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
		var created time.Time
		if err := r.db.Pool.QueryRow(ctx, ins, p.ID, p.Enabled, sealed, raw).Scan(&created); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
		p.Created = created
		return nil
	}

	const upd = `
UPDATE profiles
SET enabled=$2, credential_enc=$3, configs=$4, updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, upd, p.ID, p.Enabled, sealed, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
