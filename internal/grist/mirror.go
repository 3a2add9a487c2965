package grist

import (
	"context"
	"fmt"

	"github.com/recoco/recoco-relay/pkg/logger"
)

// Mirror copies reference tables from a source document into a destination
// document, fully replacing the destination contents on every run. It
// assumes no concurrent writer on the destination table.
type Mirror struct {
	source    *Client
	dest      *Client
	logg      *logger.Logger
	batchSize int
}

// NewMirror builds a mirror between two document clients.
func NewMirror(source, dest *Client, logg *logger.Logger, batchSize int) (*Mirror, error) {
	if source == nil || dest == nil {
		return nil, fmt.Errorf("source and destination clients required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Mirror{source: source, dest: dest, logg: logg, batchSize: batchSize}, nil
}

// MirrorTable replaces the destination table's schema and contents with the
// source table's.
func (m *Mirror) MirrorTable(ctx context.Context, tableID string) error {
	ctx = m.logg.WithField(ctx, "table_id", tableID)

	columns, err := m.source.GetTableColumns(ctx, tableID)
	if err != nil {
		return fmt.Errorf("reading source columns: %w", err)
	}
	records, err := m.source.GetRecords(ctx, tableID, nil)
	if err != nil {
		return fmt.Errorf("reading source records: %w", err)
	}

	exists, err := m.dest.TableExists(ctx, tableID)
	if err != nil {
		return fmt.Errorf("checking destination table: %w", err)
	}

	if !exists {
		if err := m.dest.CreateTable(ctx, tableID, columns); err != nil {
			return fmt.Errorf("creating destination table: %w", err)
		}
		m.logg.Info(ctx, "created destination reference table")
	} else {
		reconciler, err := NewReconciler(m.dest, m.logg)
		if err != nil {
			return err
		}
		if _, err := reconciler.SyncColumns(ctx, tableID, columns); err != nil {
			return fmt.Errorf("syncing destination columns: %w", err)
		}
		if err := m.deleteAllRecords(ctx, tableID); err != nil {
			return fmt.Errorf("clearing destination table: %w", err)
		}
	}

	if err := m.insertRecords(ctx, tableID, records); err != nil {
		return fmt.Errorf("inserting mirrored records: %w", err)
	}

	m.logg.Info(m.logg.WithField(ctx, "records", len(records)), "reference table mirrored")
	return nil
}

func (m *Mirror) deleteAllRecords(ctx context.Context, tableID string) error {
	existing, err := m.dest.GetRecords(ctx, tableID, nil)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(existing))
	for _, record := range existing {
		ids = append(ids, record.ID)
	}

	for start := 0; start < len(ids); start += m.batchSize {
		end := start + m.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := m.dest.DeleteRecords(ctx, tableID, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) insertRecords(ctx context.Context, tableID string, records []Record) error {
	for start := 0; start < len(records); start += m.batchSize {
		end := start + m.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := make([]map[string]any, 0, end-start)
		for _, record := range records[start:end] {
			batch = append(batch, record.Fields)
		}
		if _, err := m.dest.CreateRecords(ctx, tableID, batch); err != nil {
			return err
		}
	}
	return nil
}
