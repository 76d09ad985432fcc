package upstream

import (
	"context"

	"github.com/akademos/akademos/internal/catalog"
)

// FetchCatalog loads roles and permissions in one pass and converts them to
// catalog records. It satisfies catalog.Fetcher.
func (c *Client) FetchCatalog(ctx context.Context) ([]catalog.Role, []catalog.Permission, error) {
	roles, err := c.Roles(ctx)
	if err != nil {
		return nil, nil, err
	}
	perms, err := c.Permissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return toCatalogRoles(roles), toCatalogPermissions(perms), nil
}

func toCatalogRoles(roles []Role) []catalog.Role {
	out := make([]catalog.Role, len(roles))
	for i, role := range roles {
		out[i] = catalog.Role{
			ID:          role.ID,
			Name:        role.Name,
			GuardName:   role.GuardName,
			Description: role.Description,
			Permissions: toCatalogPermissions(role.Permissions),
		}
	}
	return out
}

func toCatalogPermissions(perms []Permission) []catalog.Permission {
	out := make([]catalog.Permission, len(perms))
	for i, perm := range perms {
		out[i] = catalog.Permission{
			ID:          perm.ID,
			Name:        perm.Name,
			GuardName:   perm.GuardName,
			Description: perm.Description,
		}
	}
	return out
}
