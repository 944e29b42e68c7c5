package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

// Dialect holds what differs between the SQL backends.
type Dialect struct {
	Name          string
	TimestampType string
	numbered      bool
	isDuplicate   func(error) bool
}

var MySQL = Dialect{
	Name:          "mysql",
	TimestampType: "DATETIME(6)",
	isDuplicate: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

var Postgres = Dialect{
	Name:          "postgres",
	TimestampType: "TIMESTAMPTZ",
	numbered:      true,
	isDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
}

// rebind rewrites ? placeholders as $1, $2, ... for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLAdapter struct {
	db      *sql.DB
	q       queryer
	dialect Dialect
	inTx    bool
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, q: db, dialect: MySQL}
}

func NewPostgresAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, q: db, dialect: Postgres}
}

// EnsureSchema creates the beers table when it does not exist yet.
func (s *SQLAdapter) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS beers (
			id           CHAR(36)     NOT NULL PRIMARY KEY,
			name         VARCHAR(100) NOT NULL UNIQUE,
			brand        VARCHAR(150) NOT NULL,
			beer_type    VARCHAR(16)  NOT NULL,
			max_quantity INT          NOT NULL,
			quantity     INT          NOT NULL,
			version      INT          NOT NULL DEFAULT 0,
			created_at   %[1]s NOT NULL,
			updated_at   %[1]s NOT NULL
		)`, s.dialect.TimestampType))
	if err != nil {
		return fmt.Errorf("create beers table: %w", err)
	}
	return nil
}

const beerColumns = `id, name, brand, beer_type, max_quantity, quantity, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeer(row rowScanner) (*domain.Beer, error) {
	var b domain.Beer
	var beerType string
	if err := row.Scan(&b.ID, &b.Name, &b.Brand, &beerType, &b.Max, &b.Quantity, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Type = domain.BeerType(beerType)
	return &b, nil
}

func (s *SQLAdapter) FindByName(ctx context.Context, name string) (*domain.Beer, error) {
	return s.findOne(ctx, `SELECT `+beerColumns+` FROM beers WHERE name = ?`, name)
}

// FindByID locks the row when called inside Atomically.
func (s *SQLAdapter) FindByID(ctx context.Context, id string) (*domain.Beer, error) {
	query := `SELECT ` + beerColumns + ` FROM beers WHERE id = ?`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	return s.findOne(ctx, query, id)
}

func (s *SQLAdapter) findOne(ctx context.Context, query string, arg any) (*domain.Beer, error) {
	beer, err := scanBeer(s.q.QueryRowContext(ctx, s.dialect.rebind(query), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query beer: %w", err)
	}
	return beer, nil
}

func (s *SQLAdapter) FindAll(ctx context.Context) ([]domain.Beer, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+beerColumns+` FROM beers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query beers: %w", err)
	}
	defer rows.Close()

	beers := []domain.Beer{}
	for rows.Next() {
		beer, err := scanBeer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beer: %w", err)
		}
		beers = append(beers, *beer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beers: %w", err)
	}
	return beers, nil
}

func (s *SQLAdapter) Insert(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	now := time.Now().UTC()
	beer.ID = uuid.NewString()
	beer.Version = 0
	beer.CreatedAt = now
	beer.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO beers (`+beerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		beer.ID, beer.Name, beer.Brand, string(beer.Type), beer.Max, beer.Quantity,
		beer.Version, beer.CreatedAt, beer.UpdatedAt,
	)
	if s.dialect.isDuplicate(err) {
		return nil, port.ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("insert beer: %w", err)
	}
	return &beer, nil
}

func (s *SQLAdapter) Save(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	now := time.Now().UTC()

	result, err := s.q.ExecContext(ctx, s.dialect.rebind(`
		UPDATE beers
		SET name = ?, brand = ?, beer_type = ?, max_quantity = ?, quantity = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		beer.Name, beer.Brand, string(beer.Type), beer.Max, beer.Quantity, now,
		beer.ID, beer.Version,
	)
	if s.dialect.isDuplicate(err) {
		return nil, port.ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("update beer: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, port.ErrOptimisticLock
	}

	beer.Version++
	beer.UpdatedAt = now
	return &beer, nil
}

func (s *SQLAdapter) Delete(ctx context.Context, beer domain.Beer) error {
	result, err := s.q.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM beers WHERE id = ? AND version = ?`),
		beer.ID, beer.Version,
	)
	if err != nil {
		return fmt.Errorf("delete beer: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}
	return nil
}

func (s *SQLAdapter) Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo port.BeerRepository) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &SQLAdapter{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
