package assetlist

import "github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"

// assignPositional overwrites every role from position and clears manual pins.
func assignPositional(records []*record) {
	for i, r := range records {
		r.asset.Role = domain.PositionalRole(i)
		r.asset.Pinned = false
	}
}

// assignSticky keeps pinned roles and fills the rest from position. A
// positional role that is already at capacity falls back to gallery.
func assignSticky(records []*record) {
	counts := make(map[domain.Role]int)
	for _, r := range records {
		if r.asset.Pinned {
			counts[r.asset.Role]++
		}
	}
	for i, r := range records {
		if r.asset.Pinned {
			continue
		}
		r.asset.Role = fit(domain.PositionalRole(i), counts)
		counts[r.asset.Role]++
	}
}

// assignNew gives records[start:] positional roles without touching the
// roles already held by earlier records.
func assignNew(records []*record, start int) {
	counts := make(map[domain.Role]int)
	for _, r := range records[:start] {
		counts[r.asset.Role]++
	}
	for i := start; i < len(records); i++ {
		r := records[i]
		r.asset.Role = fit(domain.PositionalRole(i), counts)
		counts[r.asset.Role]++
	}
}

func fit(want domain.Role, counts map[domain.Role]int) domain.Role {
	if limit := domain.RoleCapacity(want); limit >= 0 && counts[want] >= limit {
		return domain.RoleGallery
	}
	return want
}

// rolesValid reports whether every role is known and within its capacity.
func rolesValid(records []*record) bool {
	counts := make(map[domain.Role]int)
	for _, r := range records {
		if !domain.IsValidRole(r.asset.Role) {
			return false
		}
		counts[r.asset.Role]++
		if limit := domain.RoleCapacity(r.asset.Role); limit >= 0 && counts[r.asset.Role] > limit {
			return false
		}
	}
	return true
}

// recomputeRoles re-applies the configured policy after a structural change.
func (l *List) recomputeRoles() {
	if l.limits.RolePolicy == domain.RolePolicySticky {
		assignSticky(l.records)
		return
	}
	assignPositional(l.records)
}
