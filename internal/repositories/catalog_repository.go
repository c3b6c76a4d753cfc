package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabledesk/internal/models"
	"tabledesk/internal/reconciler"
)

// ErrObjectNotFound is returned when a catalog object does not exist (any more).
var ErrObjectNotFound = errors.New("object not found")

// pg_class.relhasoids was removed in PostgreSQL 12.
const oidsRemovedVersion = 120000

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// LoadTable captures the snapshot of an ordinary or partitioned table.
func (r *CatalogRepository) LoadTable(ctx context.Context, schema, name string) (*reconciler.Snapshot, error) {
	if schema == "" {
		schema = reconciler.DefaultSchema
	}

	query := `
		SELECT c.oid, n.nspname, c.relname, pg_get_userbyid(c.relowner),
			COALESCE(ts.spcname, ''), COALESCE(obj_description(c.oid, 'pg_class'), ''),
			current_setting('server_version_num')::int
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_tablespace ts ON ts.oid = c.reltablespace
		WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('r', 'p')
	`

	var (
		snap    reconciler.Snapshot
		version int
	)
	err := r.pool.QueryRow(ctx, query, schema, name).Scan(
		&snap.OID,
		&snap.Schema,
		&snap.Name,
		&snap.Owner,
		&snap.Tablespace,
		&snap.Comment,
		&version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table %s.%s: %w", schema, name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to load table %s.%s: %w", schema, name, err)
	}

	if version < oidsRemovedVersion {
		if err := r.pool.QueryRow(ctx, `SELECT relhasoids FROM pg_class WHERE oid = $1`, snap.OID).Scan(&snap.HasOids); err != nil {
			return nil, fmt.Errorf("failed to read oids flag: %w", err)
		}
	}

	if snap.Columns, err = r.columns(ctx, snap.OID); err != nil {
		return nil, err
	}
	if snap.Constraints, err = r.constraints(ctx, snap.OID); err != nil {
		return nil, err
	}
	if snap.Inherits, err = r.parents(ctx, snap.OID); err != nil {
		return nil, err
	}
	return &snap, nil
}

// TableExists is used on commit to detect tables dropped behind the session's back.
func (r *CatalogRepository) TableExists(ctx context.Context, oid uint32) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_class WHERE oid = $1)`, oid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return exists, nil
}

func (r *CatalogRepository) columns(ctx context.Context, relid uint32) ([]reconciler.ColumnDefinition, error) {
	query := `
		SELECT a.attnum, a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull,
			COALESCE(pg_get_expr(d.adbin, d.adrelid), ''), a.attinhcount, a.attislocal,
			COALESCE((
				SELECT pn.nspname || '.' || pc.relname
				FROM pg_inherits i
				JOIN pg_class pc ON pc.oid = i.inhparent
				JOIN pg_namespace pn ON pn.oid = pc.relnamespace
				JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attname = a.attname AND NOT pa.attisdropped
				WHERE i.inhrelid = a.attrelid
				ORDER BY i.inhseqno
				LIMIT 1
			), '')
		FROM pg_attribute a
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := r.pool.Query(ctx, query, relid)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []reconciler.ColumnDefinition
	for rows.Next() {
		var (
			lc      reconciler.LoadedColumn
			isLocal bool
			origin  string
		)
		if err := rows.Scan(&lc.Number, &lc.Name, &lc.DataType, &lc.NotNull, &lc.Default, &lc.InheritedCount, &isLocal, &origin); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := reconciler.ColumnDefinition{
			Name:   lc.Name,
			Clause: lc.Clause(),
			Loaded: &lc,
		}
		if lc.InheritedCount > 0 && !isLocal {
			col.InheritedFrom = origin
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}

func (r *CatalogRepository) constraints(ctx context.Context, relid uint32) ([]reconciler.ConstraintDefinition, error) {
	query := `
		SELECT conname, contype::text, pg_get_constraintdef(oid, true)
		FROM pg_constraint
		WHERE conrelid = $1 AND contype IN ('p', 'f', 'u', 'c') AND conislocal
		ORDER BY CASE contype WHEN 'p' THEN 0 WHEN 'u' THEN 1 WHEN 'f' THEN 2 ELSE 3 END, conname
	`

	rows, err := r.pool.Query(ctx, query, relid)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	var constraints []reconciler.ConstraintDefinition
	for rows.Next() {
		var name, contype, def string
		if err := rows.Scan(&name, &contype, &def); err != nil {
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		kind, err := reconciler.ParseConstraintKind(contype)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, reconciler.ConstraintDefinition{
			Name: name,
			Kind: kind,
			Body: constraintBody(kind, def),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraints: %w", err)
	}
	return constraints, nil
}

// constraintBody strips the kind keyword pg_get_constraintdef starts with.
func constraintBody(kind reconciler.ConstraintKind, def string) string {
	return strings.TrimSpace(strings.TrimPrefix(def, string(kind)))
}

func (r *CatalogRepository) parents(ctx context.Context, relid uint32) ([]reconciler.TableRef, error) {
	query := `
		SELECT n.nspname, c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhparent
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE i.inhrelid = $1
		ORDER BY i.inhseqno
	`

	rows, err := r.pool.Query(ctx, query, relid)
	if err != nil {
		return nil, fmt.Errorf("failed to query parents: %w", err)
	}
	defer rows.Close()

	var parents []reconciler.TableRef
	for rows.Next() {
		var p reconciler.TableRef
		if err := rows.Scan(&p.Schema, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan parent: %w", err)
		}
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

// ParentColumns returns the non-dropped columns a child of parent inherits.
func (r *CatalogRepository) ParentColumns(ctx context.Context, parent reconciler.TableRef) ([]reconciler.ColumnSpec, error) {
	if parent.Schema == "" {
		parent.Schema = reconciler.DefaultSchema
	}

	query := `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod), a.attnotnull,
			COALESCE(pg_get_expr(d.adbin, d.adrelid), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('r', 'p')
		ORDER BY a.attnum
	`

	rows, err := r.pool.Query(ctx, query, parent.Schema, parent.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent columns: %w", err)
	}
	defer rows.Close()

	var columns []reconciler.ColumnSpec
	for rows.Next() {
		var col reconciler.ColumnSpec
		if err := rows.Scan(&col.Name, &col.DataType, &col.NotNull, &col.Default); err != nil {
			return nil, fmt.Errorf("failed to scan parent column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parent columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", parent, ErrObjectNotFound)
	}
	return columns, nil
}

// ListTables returns the tables of schema, or of every user schema when
// schema is empty. System schemas are included only when showSystem is set.
func (r *CatalogRepository) ListTables(ctx context.Context, schema string, showSystem bool) ([]models.TableSummary, error) {
	query := `
		SELECT c.oid, n.nspname, c.relname, pg_get_userbyid(c.relowner),
			COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
			AND ($1::text = '' OR n.nspname = $1::text)
			AND ($2::bool OR (n.nspname NOT IN ('pg_catalog', 'information_schema') AND n.nspname NOT LIKE 'pg_toast%'))
		ORDER BY n.nspname, c.relname
	`

	rows, err := r.pool.Query(ctx, query, schema, showSystem)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.TableSummary
	for rows.Next() {
		var t models.TableSummary
		if err := rows.Scan(&t.OID, &t.Schema, &t.Name, &t.Owner, &t.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ListRoles returns every role name, for owner and grantee pickers.
func (r *CatalogRepository) ListRoles(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT rolname FROM pg_roles ORDER BY rolname`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// ListFunctions returns the plain functions of schema, or only the trigger
// functions when triggers is set.
func (r *CatalogRepository) ListFunctions(ctx context.Context, schema string, triggers bool) ([]models.Function, error) {
	if schema == "" {
		schema = reconciler.DefaultSchema
	}

	query := `
		SELECT p.oid, n.nspname, p.proname, pg_get_userbyid(p.proowner), p.pronargs,
			ARRAY(
				SELECT format_type(a.t, NULL)
				FROM unnest(p.proargtypes::oid[]) WITH ORDINALITY AS a(t, i)
				ORDER BY a.i
			),
			format_type(p.prorettype, NULL), l.lanname, p.proretset, COALESCE(p.prosrc, ''),
			p.provolatile::text, p.prosecdef, p.proisstrict,
			COALESCE(obj_description(p.oid, 'pg_proc'), ''),
			p.oid < 16384
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
			AND p.prokind = 'f'
			AND (p.prorettype = 'trigger'::regtype) = $2::bool
		ORDER BY p.proname
	`

	rows, err := r.pool.Query(ctx, query, schema, triggers)
	if err != nil {
		return nil, fmt.Errorf("failed to query functions: %w", err)
	}
	defer rows.Close()

	var functions []models.Function
	for rows.Next() {
		var (
			f          models.Function
			volatility string
		)
		err := rows.Scan(
			&f.OID,
			&f.Schema,
			&f.Name,
			&f.Owner,
			&f.ArgCount,
			&f.ArgTypes,
			&f.ReturnType,
			&f.Language,
			&f.ReturnsSet,
			&f.Source,
			&volatility,
			&f.SecurityDefiner,
			&f.Strict,
			&f.Comment,
			&f.SystemObject,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan function: %w", err)
		}
		f.Volatility = models.VolatilityName(volatility)
		functions = append(functions, f)
	}
	return functions, rows.Err()
}

const userQuery = `
	SELECT r.oid, r.rolname, r.rolsuper, r.rolcreatedb, r.rolcreaterole,
		CASE WHEN r.rolvaliduntil = 'infinity' THEN NULL ELSE r.rolvaliduntil END,
		COALESCE(r.rolconfig, '{}'),
		ARRAY(
			SELECT g.rolname
			FROM pg_auth_members m
			JOIN pg_roles g ON g.oid = m.roleid
			WHERE m.member = r.oid
			ORDER BY g.rolname
		)
	FROM pg_roles r
`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.OID, &u.Name, &u.Superuser, &u.CreateDB, &u.CreateRole, &u.ValidUntil, &u.Config, &u.MemberOf)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns the roles that can log in.
func (r *CatalogRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, userQuery+` WHERE r.rolcanlogin ORDER BY r.rolname`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *CatalogRepository) GetUser(ctx context.Context, name string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE r.rolname = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", name, err)
	}
	return u, nil
}

func (r *CatalogRepository) DropUser(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, "DROP USER "+reconciler.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop user %s: %w", name, err)
	}
	return nil
}
