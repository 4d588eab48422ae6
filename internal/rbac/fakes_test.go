// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/rbac/rbactest"
	"github.com/taibuivan/warden/pkg/pagination"
)

// memoryMembers is an in-memory [rbac.MemberDirectory] keyed by role ID.
type memoryMembers struct {
	byRole map[string][]rbac.Member
}

func newMemoryMembers() *memoryMembers {
	return &memoryMembers{byRole: make(map[string][]rbac.Member)}
}

func (members *memoryMembers) assign(roleID string, member rbac.Member) {
	members.byRole[roleID] = append(members.byRole[roleID], member)
}

func (members *memoryMembers) CountByRole(_ context.Context, roleID string) (int, error) {
	return len(members.byRole[roleID]), nil
}

func (members *memoryMembers) CountAllByRole(context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(members.byRole))
	for roleID, list := range members.byRole {
		counts[roleID] = len(list)
	}
	return counts, nil
}

func (members *memoryMembers) ListByRole(_ context.Context, roleID string, page pagination.Params) ([]rbac.Member, int, error) {
	list := members.byRole[roleID]
	start := min(page.Offset(), len(list))
	end := min(start+page.Limit, len(list))
	return list[start:end], len(list), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService() (*rbac.Service, *rbactest.Roles, *memoryMembers) {
	roles := rbactest.NewRoles()
	members := newMemoryMembers()
	return rbac.NewService(roles, members, discardLogger()), roles, members
}
