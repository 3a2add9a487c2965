package grist

import (
	"context"
	"fmt"
	"sort"

	"github.com/recoco/recoco-relay/pkg/logger"
)

// RenamedColumn reports a column whose label drifted between the desired
// spec and the remote table.
type RenamedColumn struct {
	ColID        string
	DesiredLabel string
	RemoteLabel  string
}

// SchemaDiff is the outcome of comparing a desired column spec against the
// live remote schema. Missing and TypeMismatched are actionable; Orphaned
// and Renamed are report-only, the reconciler never deletes or renames on a
// shared document.
type SchemaDiff struct {
	Missing        []Column
	TypeMismatched []Column
	Orphaned       []string
	Renamed        []RenamedColumn
}

// Empty reports whether the diff requires or reports nothing.
func (d SchemaDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.TypeMismatched) == 0 &&
		len(d.Orphaned) == 0 && len(d.Renamed) == 0
}

// DiffSchema buckets the differences between desired and remote columns.
func DiffSchema(desired, remote []Column) SchemaDiff {
	remoteByID := make(map[string]Column, len(remote))
	for _, col := range remote {
		remoteByID[col.ID] = col
	}
	desiredIDs := make(map[string]bool, len(desired))

	var diff SchemaDiff
	for _, col := range desired {
		desiredIDs[col.ID] = true

		remoteCol, ok := remoteByID[col.ID]
		if !ok {
			diff.Missing = append(diff.Missing, col)
			continue
		}
		if remoteCol.Fields.Type != col.Fields.Type {
			diff.TypeMismatched = append(diff.TypeMismatched, col)
			continue
		}
		if remoteCol.Fields.Label != col.Fields.Label {
			diff.Renamed = append(diff.Renamed, RenamedColumn{
				ColID:        col.ID,
				DesiredLabel: col.Fields.Label,
				RemoteLabel:  remoteCol.Fields.Label,
			})
		}
	}

	for _, col := range remote {
		if !desiredIDs[col.ID] {
			diff.Orphaned = append(diff.Orphaned, col.ID)
		}
	}
	sort.Strings(diff.Orphaned)

	return diff
}

// Consistent reports whether the remote schema matches the desired one on
// {id, label, type}, ignoring remote columns outside the desired id set. A
// bulk refresh is refused when this is false.
func Consistent(desired, remote []Column) bool {
	desiredIDs := make(map[string]bool, len(desired))
	for _, col := range desired {
		desiredIDs[col.ID] = true
	}

	filtered := make([]Column, 0, len(remote))
	for _, col := range remote {
		if desiredIDs[col.ID] {
			filtered = append(filtered, Column{
				ID: col.ID,
				Fields: ColumnFields{
					Label: col.Fields.Label,
					Type:  col.Fields.Type,
				},
			})
		}
	}

	if len(filtered) != len(desired) {
		return false
	}

	sortColumns := func(cols []Column) []Column {
		sorted := make([]Column, len(cols))
		copy(sorted, cols)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		return sorted
	}

	a := sortColumns(desired)
	b := sortColumns(filtered)
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Fields.Label != b[i].Fields.Label ||
			a[i].Fields.Type != b[i].Fields.Type {
			return false
		}
	}
	return true
}

// Reconciler pushes the actionable part of a schema diff to the remote
// table and logs the report-only buckets.
type Reconciler struct {
	client *Client
	logg   *logger.Logger
}

// NewReconciler builds a reconciler for one document client.
func NewReconciler(client *Client, logg *logger.Logger) (*Reconciler, error) {
	if client == nil {
		return nil, fmt.Errorf("grist client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{client: client, logg: logg}, nil
}

// SyncColumns diffs desired against the live table schema, creates missing
// columns, fixes type mismatches, and reports drift. Returns the computed
// diff.
func (r *Reconciler) SyncColumns(ctx context.Context, tableID string, desired []Column) (SchemaDiff, error) {
	remote, err := r.client.GetTableColumns(ctx, tableID)
	if err != nil {
		return SchemaDiff{}, err
	}

	diff := DiffSchema(desired, remote)

	if len(diff.Missing) > 0 {
		if err := r.client.CreateTableColumns(ctx, tableID, diff.Missing); err != nil {
			return diff, err
		}
		for _, col := range diff.Missing {
			r.logg.Info(r.logg.WithField(ctx, "col_id", col.ID), "created remote column")
		}
	}

	for _, col := range diff.TypeMismatched {
		update := Column{
			ID: col.ID,
			Fields: ColumnFields{
				Type:  col.Fields.Type,
				ColID: col.ID,
			},
		}
		if err := r.client.UpdateTableColumns(ctx, tableID, []Column{update}); err != nil {
			return diff, err
		}
		r.logg.Info(r.logg.WithField(ctx, "col_id", col.ID), "updated remote column type")
	}

	for _, colID := range diff.Orphaned {
		r.logg.Warn(r.logg.WithField(ctx, "col_id", colID), "remote column not present in config")
	}
	for _, renamed := range diff.Renamed {
		fields := map[string]any{
			"col_id":       renamed.ColID,
			"config_label": renamed.DesiredLabel,
			"remote_label": renamed.RemoteLabel,
		}
		r.logg.Warn(r.logg.WithFields(ctx, fields), "remote column renamed")
	}

	return diff, nil
}
