package assetlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
)

func records(roles ...domain.Role) []*record {
	out := make([]*record, len(roles))
	for i, r := range roles {
		out[i] = &record{asset: domain.ImageAsset{Role: r}}
	}
	return out
}

func roleList(rs []*record) []domain.Role {
	out := make([]domain.Role, len(rs))
	for i, r := range rs {
		out[i] = r.asset.Role
	}
	return out
}

func TestAssignPositional(t *testing.T) {
	rs := records("", "", "", "", "")
	rs[4].asset.Pinned = true
	assignPositional(rs)

	assert.Equal(t, []domain.Role{
		domain.RoleThumbnail, domain.RoleThumbnail, domain.RoleCover, domain.RoleGallery, domain.RoleGallery,
	}, roleList(rs))
	assert.False(t, rs[4].asset.Pinned)
}

func TestAssignSticky(t *testing.T) {
	rs := records(domain.RoleGallery, domain.RoleGallery, domain.RoleGallery, domain.RoleThumbnail, domain.RoleCover)
	rs[3].asset.Pinned = true
	rs[4].asset.Pinned = true
	assignSticky(rs)

	assert.Equal(t, []domain.Role{
		domain.RoleThumbnail, domain.RoleGallery, domain.RoleGallery, domain.RoleThumbnail, domain.RoleCover,
	}, roleList(rs))
	assert.True(t, rolesValid(rs))
}

func TestAssignNew(t *testing.T) {
	rs := records(domain.RoleThumbnail, domain.RoleCover, "", "", "")
	assignNew(rs, 2)

	assert.Equal(t, []domain.Role{
		domain.RoleThumbnail, domain.RoleCover, domain.RoleGallery, domain.RoleGallery, domain.RoleGallery,
	}, roleList(rs))
}

func TestRolesValid(t *testing.T) {
	assert.True(t, rolesValid(nil))
	assert.True(t, rolesValid(records(domain.RoleThumbnail, domain.RoleThumbnail, domain.RoleCover)))
	assert.False(t, rolesValid(records(domain.RoleCover, domain.RoleCover)))
	assert.False(t, rolesValid(records(domain.RoleThumbnail, domain.RoleThumbnail, domain.RoleThumbnail)))
	assert.False(t, rolesValid(records("poster")))
}
