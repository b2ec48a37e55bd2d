package postgres

import (
	"context"
	"errors"
	"time"

	"pairwatch/internal/engine"
)

func (p *PostgresClient) InsertAlert(ctx context.Context, record *AlertRecord) error {
	if record == nil {
		return errors.New("nil alert record")
	}
	return p.DB.WithContext(ctx).Create(record).Error
}

// ListAlerts returns up to limit alerts for the pair, newest first.
func (p *PostgresClient) ListAlerts(ctx context.Context, x, y string, limit int) ([]AlertRecord, error) {
	var records []AlertRecord
	err := p.DB.WithContext(ctx).
		Where("symbol_x = ? AND symbol_y = ?", x, y).
		Order("raised_at DESC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteAlertsBefore removes alerts raised before the cutoff and reports how many were deleted.
func (p *PostgresClient) DeleteAlertsBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("raised_at < ?", before).
		Delete(&AlertRecord{})
	return tx.RowsAffected, tx.Error
}

// ToAlertRecord converts an engine alert for DB insertion.
func ToAlertRecord(a engine.Alert) *AlertRecord {
	return &AlertRecord{
		CycleID:    a.CycleID,
		SymbolX:    a.Pair.X,
		SymbolY:    a.Pair.Y,
		RaisedAt:   a.RaisedAt.UTC(),
		Timeframe:  a.Timeframe.String(),
		ZScore:     a.ZScore,
		Threshold:  a.Threshold,
		HedgeRatio: a.HedgeRatio,
		Message:    a.Message,
	}
}
