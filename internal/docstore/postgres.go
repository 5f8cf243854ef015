package docstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const householdChannel = "household_changed"

// Postgres stores documents as JSONB rows. Household writes raise a
// notification on householdChannel carrying the household id.
type Postgres struct {
	pool     *pgxpool.Pool
	listener *listener
	logger   *slog.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to databaseURL and migrates the document schema.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect docstore: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping docstore: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{
		pool:     pool,
		listener: startListener(pool.Config().ConnConfig, logger),
		logger:   logger,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("docstore migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("docstore migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("docstore goose up: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.listener.stop()
	p.pool.Close()
}

func decodeUser(uid string, raw []byte) (*UserDoc, error) {
	var u UserDoc
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", uid, err)
	}
	u.UID = uid
	return &u, nil
}

func decodeHousehold(id string, raw []byte) (*HouseholdDoc, error) {
	var h HouseholdDoc
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decode household %s: %w", id, err)
	}
	h.ID = id
	h.Members = cloneMembers(h.Members)
	return &h, nil
}

func (p *Postgres) GetUser(ctx context.Context, uid string) (*UserDoc, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM users WHERE uid = $1`, uid).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return decodeUser(uid, raw)
}

func (p *Postgres) CreateUser(ctx context.Context, user UserDoc) (bool, error) {
	doc, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("encode user: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO users (uid, doc) VALUES ($1, $2) ON CONFLICT (uid) DO NOTHING`,
		user.UID, doc,
	)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) SetUserHousehold(ctx context.Context, uid string, householdID *string) error {
	ref, err := json.Marshal(householdID)
	if err != nil {
		return fmt.Errorf("encode household ref: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET doc = jsonb_set(doc, '{householdId}', $2::jsonb), updated_at = now() WHERE uid = $1`,
		uid, string(ref),
	)
	if err != nil {
		return fmt.Errorf("set user household: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set household of user %s: %w", uid, ErrNotFound)
	}
	return nil
}

func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (*UserDoc, error) {
	var uid string
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT uid, doc FROM users WHERE lower(doc->>'email') = lower($1) ORDER BY uid LIMIT 1`,
		email,
	).Scan(&uid, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return decodeUser(uid, raw)
}

func (p *Postgres) GetUsers(ctx context.Context, uids []string) ([]UserDoc, error) {
	if len(uids) == 0 {
		return []UserDoc{}, nil
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT uid, doc FROM users WHERE uid = ANY($1)`, uids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	found := make(map[string]*UserDoc, len(uids))
	for rows.Next() {
		var uid string
		var raw []byte
		if err := rows.Scan(&uid, &raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u, err := decodeUser(uid, raw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		found[uid] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	users := make([]UserDoc, 0, len(found))
	for _, uid := range uids {
		if u, ok := found[uid]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (p *Postgres) GetHousehold(ctx context.Context, id string) (*HouseholdDoc, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM households WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return decodeHousehold(id, raw)
}

func (p *Postgres) CreateHousehold(ctx context.Context, household HouseholdDoc) error {
	household.Members = cloneMembers(household.Members)
	doc, err := json.Marshal(household)
	if err != nil {
		return fmt.Errorf("encode household: %w", err)
	}
	if _, err := p.pool.Exec(ctx, `INSERT INTO households (id, doc) VALUES ($1, $2)`, household.ID, doc); err != nil {
		return fmt.Errorf("create household: %w", err)
	}
	return nil
}

func (p *Postgres) RenameHousehold(ctx context.Context, id, name string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE households SET doc = jsonb_set(doc, '{name}', to_jsonb($2::text)), updated_at = now() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("rename household: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rename household %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateMembers locks the household row for the duration of fn, so
// concurrent member changes serialize instead of overwriting each other.
func (p *Postgres) UpdateMembers(ctx context.Context, id string, fn MembersFunc) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT doc FROM households WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update members of %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock household: %w", err)
		}
		h, err := decodeHousehold(id, raw)
		if err != nil {
			return err
		}

		next, changed := fn(h.Members)
		if !changed {
			return nil
		}
		members, err := json.Marshal(cloneMembers(next))
		if err != nil {
			return fmt.Errorf("encode members: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE households SET doc = jsonb_set(doc, '{members}', $2::jsonb), updated_at = now() WHERE id = $1`,
			id, string(members),
		); err != nil {
			return fmt.Errorf("update members: %w", err)
		}
		return nil
	})
}

// WatchHousehold subscribes to the shared listener. It holds no pooled
// connection, so open watches never starve other queries.
func (p *Postgres) WatchHousehold(ctx context.Context, id string) (<-chan struct{}, error) {
	return p.listener.watch(ctx, id), nil
}
