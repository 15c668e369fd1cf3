package authorization

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/models"
)

// Effective returns every grant gathered for (user, resource) under the same
// rules Check uses, annotated with origin, depth and applicability. Entries
// are ordered nearest resource first.
func (s *AuthorizationService) Effective(
	ctx context.Context,
	userID models.UserID,
	resourceID models.ResourceID,
) ([]*models.EffectiveGrant, error) {
	_, err := s.userStore.Read(ctx, nil, userID)
	if err != nil {
		return nil, errors.Wrap(err, "error reading user")
	}
	groups, err := s.membership.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupNames, err := s.groupStore.ReadNames(ctx, nil, groups)
	if err != nil {
		return nil, errors.Wrap(err, "error reading group names")
	}
	ancestors, err := s.hierarchy.Ancestors(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	grantees := make([]models.ResourceID, 0, len(groups)+1)
	grantees = append(grantees, userID.ResourceID)
	for _, groupID := range groups {
		grantees = append(grantees, groupID.ResourceID)
	}
	resources := make([]models.ResourceID, 0, len(ancestors))
	depths := make(map[models.ResourceID]int, len(ancestors))
	for _, ancestor := range ancestors {
		resources = append(resources, ancestor.ID)
		depths[ancestor.ID] = ancestor.Depth
	}
	permissions := append(models.LatticePermissions(), models.PermissionMember)

	grants, err := s.grantStore.ListForDecision(ctx, nil, grantees, resources, permissions)
	if err != nil {
		return nil, errors.Wrap(err, "error listing grants")
	}

	effective := make([]*models.EffectiveGrant, 0, len(grants))
	for _, grant := range grants {
		depth := depths[grant.ResourceID]
		entry := &models.EffectiveGrant{
			Grant:      grant,
			Origin:     models.GrantOriginDirect,
			Depth:      depth,
			Applicable: depth == 0 || grant.Inherit,
		}
		if grant.GranteeType == models.GroupGranteeType {
			entry.Origin = models.GrantOriginViaGroup
			entry.GroupName = groupNames[grant.GranteeID]
		}
		effective = append(effective, entry)
	}
	sort.SliceStable(effective, func(i, j int) bool {
		return effective[i].Depth < effective[j].Depth
	})
	return effective, nil
}

// Matrix builds the permission matrix for a resource: one row per grantee
// holding any non-membership grant on the resource or its ancestors, one
// cell per permission in the strength lattice. Rows sort groups before
// users, then by name.
func (s *AuthorizationService) Matrix(ctx context.Context, resourceID models.ResourceID) ([]*models.MatrixRow, error) {
	chain, err := s.hierarchy.InheritanceChain(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	resources := make([]models.ResourceID, 0, len(chain))
	depths := make(map[models.ResourceID]int, len(chain))
	sourceNames := make(map[models.ResourceID]string, len(chain))
	for _, link := range chain {
		resources = append(resources, link.ID)
		depths[link.ID] = link.Depth
		sourceNames[link.ID] = link.Name
	}

	grants, err := s.grantStore.ListForResourceSet(ctx, nil, resources)
	if err != nil {
		return nil, errors.Wrap(err, "error listing grants")
	}

	byGrantee := make(map[models.ResourceID][]*models.Grant)
	var granteeOrder []models.ResourceID
	for _, grant := range grants {
		// Membership is not an ACL entry; it has no matrix row.
		if grant.Permission == models.PermissionMember {
			continue
		}
		if _, seen := byGrantee[grant.GranteeID]; !seen {
			granteeOrder = append(granteeOrder, grant.GranteeID)
		}
		byGrantee[grant.GranteeID] = append(byGrantee[grant.GranteeID], grant)
	}

	rows := make([]*models.MatrixRow, 0, len(granteeOrder))
	for _, granteeID := range granteeOrder {
		granteeGrants := byGrantee[granteeID]
		row := &models.MatrixRow{
			GranteeType: granteeGrants[0].GranteeType,
			GranteeID:   granteeID,
			GranteeName: s.resolveGranteeName(ctx, granteeGrants[0].GranteeType, granteeID),
			Cells:       make(map[models.Permission]models.MatrixCell, len(models.LatticePermissions())),
		}
		for _, permission := range models.LatticePermissions() {
			row.Cells[permission] = s.matrixCell(granteeGrants, permission, depths, sourceNames)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		left, right := rows[i], rows[j]
		if left.GranteeType != right.GranteeType {
			return left.GranteeType == models.GroupGranteeType
		}
		return left.GranteeName < right.GranteeName
	})
	return rows, nil
}

// matrixCell decides one (grantee, permission) cell from the grantee's
// grants, applying the same closure, inheritance gating and deny-wins rules
// as a check.
func (s *AuthorizationService) matrixCell(
	grants []*models.Grant,
	permission models.Permission,
	depths map[models.ResourceID]int,
	sourceNames map[models.ResourceID]string,
) models.MatrixCell {
	satisfying := make(map[models.Permission]bool)
	for _, p := range models.SatisfyingPermissions(permission) {
		satisfying[p] = true
	}

	var (
		deny          *models.Grant
		decidingAllow *models.Grant
		unrestricted  bool
		fields        FieldUnion
		anyAllow      bool
	)
	for _, grant := range grants {
		if !satisfying[grant.Permission] {
			continue
		}
		depth := depths[grant.ResourceID]
		if depth > 0 && !grant.Inherit {
			continue
		}
		if grant.Effect == models.EffectDeny {
			if deny == nil || depth < depths[deny.ResourceID] {
				deny = grant
			}
			continue
		}
		anyAllow = true
		if grant.Fields == nil {
			unrestricted = true
		} else {
			fields.Add(grant.Fields)
		}
		if decidingAllow == nil || depth < depths[decidingAllow.ResourceID] {
			decidingAllow = grant
		}
	}

	if deny != nil {
		return models.MatrixCell{
			Allowed:   false,
			Inherited: depths[deny.ResourceID] > 0,
			Source:    sourceNames[deny.ResourceID],
		}
	}
	if !anyAllow {
		return models.MatrixCell{Allowed: false}
	}
	cell := models.MatrixCell{
		Allowed:   true,
		Inherited: depths[decidingAllow.ResourceID] > 0,
		Source:    sourceNames[decidingAllow.ResourceID],
	}
	if !unrestricted {
		cell.FieldRestricted = true
		cell.Fields = fields.List()
	}
	return cell
}

func (s *AuthorizationService) resolveGranteeName(ctx context.Context, granteeType models.GranteeType, granteeID models.ResourceID) string {
	switch granteeType {
	case models.UserGranteeType:
		user, err := s.userStore.Read(ctx, nil, models.UserIDFromResourceID(granteeID))
		if err == nil {
			return user.DisplayName()
		}
	case models.GroupGranteeType:
		group, err := s.groupStore.Read(ctx, nil, models.GroupIDFromResourceID(granteeID))
		if err == nil {
			return group.Name
		}
	}
	return granteeID.String()
}

// InheritanceTree returns the forest of hierarchical resources the user can
// touch, rooted at sites. Each node carries the lattice permissions the user
// holds there and the permissions explicitly denied there; branches with no
// reachable permission anywhere are pruned.
func (s *AuthorizationService) InheritanceTree(ctx context.Context, userID models.UserID) ([]*models.InheritanceNode, error) {
	user, err := s.userStore.Read(ctx, nil, userID)
	if err != nil {
		return nil, errors.Wrap(err, "error reading user")
	}
	if user.Disabled {
		return nil, nil
	}

	sites, err := s.listAllByKind(ctx, models.SiteResourceKind)
	if err != nil {
		return nil, err
	}

	var forest []*models.InheritanceNode
	for _, site := range sites {
		node, reachable, err := s.buildTreeNode(ctx, user, site)
		if err != nil {
			return nil, err
		}
		if reachable {
			forest = append(forest, node)
		}
	}
	return forest, nil
}

func (s *AuthorizationService) buildTreeNode(
	ctx context.Context,
	user *models.User,
	record *models.ResourceRecord,
) (*models.InheritanceNode, bool, error) {
	node := &models.InheritanceNode{
		Kind: record.Kind,
		ID:   record.ID,
		Name: record.Name,
	}

	reachable := false
	if user.IsAdmin {
		node.Allowed = models.LatticePermissions()
		reachable = true
	} else {
		for _, permission := range models.LatticePermissions() {
			result, err := s.evaluate(ctx, user, record.ID, permission)
			if err != nil {
				return nil, false, err
			}
			if result.decision.Allowed {
				node.Allowed = append(node.Allowed, permission)
			} else if result.explicitDeny {
				node.Denied = append(node.Denied, permission)
			}
		}
		reachable = len(node.Allowed) > 0
	}

	children, err := s.listAllByParent(ctx, record.ID)
	if err != nil {
		return nil, false, err
	}
	for _, child := range children {
		childNode, childReachable, err := s.buildTreeNode(ctx, user, child)
		if err != nil {
			return nil, false, err
		}
		if childReachable {
			node.Children = append(node.Children, childNode)
			reachable = true
		}
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].Name < node.Children[j].Name
	})
	return node, reachable, nil
}

func (s *AuthorizationService) listAllByKind(ctx context.Context, kind models.ResourceKind) ([]*models.ResourceRecord, error) {
	var all []*models.ResourceRecord
	opts := models.ListOptions{Limit: models.MaxListLimit}
	for {
		page, err := s.resourceStore.ListByKind(ctx, nil, kind, opts)
		if err != nil {
			return nil, errors.Wrap(err, "error listing resources")
		}
		all = append(all, page...)
		if len(page) < opts.Limit {
			return all, nil
		}
		opts.Offset += opts.Limit
	}
}

func (s *AuthorizationService) listAllByParent(ctx context.Context, parentID models.ResourceID) ([]*models.ResourceRecord, error) {
	var all []*models.ResourceRecord
	opts := models.ListOptions{Limit: models.MaxListLimit}
	for {
		page, err := s.resourceStore.ListByParent(ctx, nil, parentID, opts)
		if err != nil {
			return nil, errors.Wrap(err, "error listing child resources")
		}
		all = append(all, page...)
		if len(page) < opts.Limit {
			return all, nil
		}
		opts.Offset += opts.Limit
	}
}
