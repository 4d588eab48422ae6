// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/pkg/uuid"
)

// BootstrapReport lists what [Service.Bootstrap] did, by role name.
type BootstrapReport struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
}

/*
Bootstrap upserts the canonical system roles. It is safe to run on every start.

Missing roles are created with isSystem set. Existing system roles get their
permission set reset to the canonical one. A non-system role that happens to
carry a canonical name is never touched.

Returns:
  - *BootstrapReport: Per-role outcome
  - error: Storage failures
*/
func (service *Service) Bootstrap(context context.Context) (*BootstrapReport, error) {
	report := &BootstrapReport{}

	for _, canonical := range CanonicalRoles() {
		existing, err := service.repository.FindByName(context, canonical.Name)

		switch {
		case apperr.Is(err, apperr.KindNotFound):
			role := &Role{
				ID:          uuid.New(),
				Name:        canonical.Name,
				DisplayName: canonical.DisplayName,
				Description: canonical.Description,
				Permissions: access.Clone(canonical.Permissions),
				Level:       canonical.Level,
				IsActive:    true,
				IsSystem:    true,
			}
			if err := service.repository.Create(context, role); err != nil {
				return nil, fmt.Errorf("rbac_bootstrap_create_failed: %s: %w", canonical.Name, err)
			}
			report.Created = append(report.Created, canonical.Name)

		case err != nil:
			return nil, fmt.Errorf("rbac_bootstrap_lookup_failed: %s: %w", canonical.Name, err)

		case !existing.IsSystem:
			service.logger.WarnContext(context, "rbac_bootstrap_name_taken",
				slog.String("name", canonical.Name),
				slog.String("role_id", existing.ID),
			)
			report.Skipped = append(report.Skipped, canonical.Name)

		default:
			if err := service.repository.UpdatePermissions(context, existing.ID, canonical.Permissions); err != nil {
				return nil, fmt.Errorf("rbac_bootstrap_update_failed: %s: %w", canonical.Name, err)
			}
			report.Updated = append(report.Updated, canonical.Name)
		}
	}

	service.logger.InfoContext(context, "rbac_bootstrap_completed",
		slog.Int("created", len(report.Created)),
		slog.Int("updated", len(report.Updated)),
		slog.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}
