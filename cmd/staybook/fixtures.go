package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"staybook/internal/app/uow"
	"staybook/internal/domain/stays"
)

type stayFixture struct {
	ID          string   `json:"id"`
	Host        string   `json:"host"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Capacity    int      `json:"guest_number"`
	Images      []string `json:"images"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
}

// loadStayFixtures imports stays from a JSON array. Stays that already exist
// are left untouched; invalid entries are logged and skipped.
func loadStayFixtures(ctx context.Context, b backends, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("stay fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("stay fixtures file empty", "path", path)
		return nil
	}
	var fixtures []stayFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	imported := 0
	for _, fx := range fixtures {
		loc := stays.Location{StayID: stays.StayID(fx.ID), Lat: fx.Lat, Lon: fx.Lon}
		if err := loc.Validate(); err != nil {
			logger.Error("fixture invalid", "stay_id", fx.ID, "error", err)
			continue
		}
		stay, err := stays.NewStay(stays.CreateParams{
			ID:          stays.StayID(fx.ID),
			Host:        stays.HostID(fx.Host),
			Name:        fx.Name,
			Description: fx.Description,
			Address:     fx.Address,
			Capacity:    fx.Capacity,
			Images:      fx.Images,
			Location:    loc,
			Now:         now,
		})
		if err != nil {
			logger.Error("fixture invalid", "stay_id", fx.ID, "error", err)
			continue
		}
		created, err := saveFixture(ctx, b.uow, stay)
		if err != nil {
			logger.Error("cannot store fixture stay", "stay_id", fx.ID, "error", err)
			continue
		}
		if err := b.geo.Index(ctx, loc); err != nil {
			logger.Error("cannot index fixture stay", "stay_id", fx.ID, "error", err)
			continue
		}
		if created {
			imported++
		}
	}
	logger.Info("stay fixtures imported", "path", path, "imported", imported, "total", len(fixtures))
	return nil
}

func saveFixture(ctx context.Context, factory uow.UoWFactory, stay *stays.Stay) (bool, error) {
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return false, err
	}
	ctx = uow.Bind(ctx, unit)
	exists, err := unit.Stays().Exists(ctx, stay.ID)
	if err != nil || exists {
		_ = unit.Rollback(ctx)
		return false, err
	}
	if err := unit.Stays().Save(ctx, stay); err != nil {
		_ = unit.Rollback(ctx)
		return false, err
	}
	return true, unit.Commit(ctx)
}
