package pg

import (
	"context"
	"database/sql"
	"fmt"

	"flowhq.dev/internal/auth"
	"flowhq.dev/internal/ids"
)

type roleStore struct{ db *sql.DB }

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	roles, err := queryRoles(ctx, s.db, `where r.name = $1`, name)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, auth.ErrNotFound
	}
	return &roles[0], nil
}

func (s *roleStore) List(ctx context.Context) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	return queryRoles(ctx, s.db, "")
}

func (s *roleStore) Ensure(ctx context.Context, role auth.Role) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	permIDs := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		var id string
		if err := tx.QueryRowContext(ctx, `
			insert into permissions (id, name, description, resource, action, is_active)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (name) do update
			set description = excluded.description,
			    resource = excluded.resource,
			    action = excluded.action,
			    is_active = excluded.is_active
			returning id
		`, ids.New(), p.Name, nullIfEmpty(p.Description), p.Resource, p.Action, p.IsActive).Scan(&id); err != nil {
			return fmt.Errorf("upsert permission %s: %w", p.Name, err)
		}
		permIDs = append(permIDs, id)
	}

	var roleID string
	if err := tx.QueryRowContext(ctx, `
		insert into roles (id, name, description, is_active)
		values ($1, $2, $3, $4)
		on conflict (name) do update
		set description = excluded.description,
		    is_active = excluded.is_active,
		    updated_at = now()
		returning id
	`, ids.New(), role.Name, nullIfEmpty(role.Description), role.IsActive).Scan(&roleID); err != nil {
		return fmt.Errorf("upsert role %s: %w", role.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range permIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, pid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(description, ''), resource, action, is_active, created_at
		from permissions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRoles loads roles with their permissions in one round trip. filter is
// spliced after the joins and may reference r (roles).
func queryRoles(ctx context.Context, q queryer, filter string, args ...any) ([]auth.Role, error) {
	rows, err := q.QueryContext(ctx, `
		select r.id, r.name, coalesce(r.description, ''), r.is_active, r.created_at, r.updated_at,
		       p.id, p.name, p.description, p.resource, p.action, p.is_active, p.created_at
		from roles r
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		`+filter+`
		order by r.name, p.name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []auth.Role
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			r        auth.Role
			pID      sql.NullString
			pName    sql.NullString
			pDesc    sql.NullString
			pRes     sql.NullString
			pAction  sql.NullString
			pActive  sql.NullBool
			pCreated sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
			&pID, &pName, &pDesc, &pRes, &pAction, &pActive, &pCreated); err != nil {
			return nil, err
		}
		i, seen := index[r.ID]
		if !seen {
			r.Permissions = []auth.Permission{}
			result = append(result, r)
			i = len(result) - 1
			index[r.ID] = i
		}
		if pID.Valid {
			result[i].Permissions = append(result[i].Permissions, auth.Permission{
				ID:          pID.String,
				Name:        pName.String,
				Description: pDesc.String,
				Resource:    pRes.String,
				Action:      pAction.String,
				IsActive:    pActive.Bool,
				CreatedAt:   pCreated.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
