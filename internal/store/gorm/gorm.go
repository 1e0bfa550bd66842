// Package gormstore implements the store backend on a GORM database,
// serving both Postgres and SQLite through the same code path.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyloop/engine/internal/model"
	"github.com/skyloop/engine/internal/model/convert"
	"github.com/skyloop/engine/pkg/core"
)

// Dependencies contains everything the backend needs.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements the store interface over GORM.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New creates a backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{db: deps.DB, logger: log}
}

func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm store requires a database handle")
	}
	return nil
}

func (b *Backend) Close() error { return nil }

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ErrNotFound
	}
	return err
}

// Locations

func (b *Backend) CreateLocation(ctx context.Context, l *core.Location) error {
	if l == nil || l.Name == "" {
		return fmt.Errorf("%w: location requires a name", core.ErrInvalid)
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now

	gm := convert.LocationToGorm(*l)
	return translate(b.db.WithContext(ctx).Create(&gm).Error)
}

func (b *Backend) GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error) {
	var gm model.Location
	if err := b.db.WithContext(ctx).First(&gm, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	l := convert.LocationToCore(gm)
	return &l, nil
}

func (b *Backend) ListLocations(ctx context.Context) ([]core.Location, error) {
	var gms []model.Location
	if err := b.db.WithContext(ctx).Order("name").Find(&gms).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]core.Location, len(gms))
	for i, gm := range gms {
		out[i] = convert.LocationToCore(gm)
	}
	return out, nil
}

func (b *Backend) UpdateLocation(ctx context.Context, l *core.Location) error {
	if l == nil {
		return core.ErrInvalid
	}
	var existing model.Location
	if err := b.db.WithContext(ctx).First(&existing, "id = ?", l.ID).Error; err != nil {
		return translate(err)
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = time.Now()

	gm := convert.LocationToGorm(*l)
	return translate(b.db.WithContext(ctx).Save(&gm).Error)
}

func (b *Backend) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Location{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrNotFound
		}

		var hotspotIDs []uuid.UUID
		if err := tx.Model(&model.Hotspot{}).Where("location_id = ?", id).
			Pluck("id", &hotspotIDs).Error; err != nil {
			return err
		}
		if len(hotspotIDs) > 0 {
			if err := tx.Delete(&model.Playlist{}, "hotspot_id IN ?", hotspotIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.Hotspot{}, "id IN ?", hotspotIDs).Error; err != nil {
				return err
			}
		}

		// Assets survive their location as global orphans.
		return tx.Model(&model.Asset{}).Where("location_id = ?", id).
			Update("location_id", nil).Error
	})
}

// Assets

func (b *Backend) CreateAsset(ctx context.Context, a *core.Asset, storagePath string) error {
	if a == nil || !a.Type.Valid() || a.Filename == "" {
		return fmt.Errorf("%w: asset requires a known type and filename", core.ErrInvalid)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.AccessURL = fmt.Sprintf("/api/assets/file/%s/%s", a.Type, a.Filename)

	gm := convert.AssetToGorm(*a)
	gm.StoragePath = storagePath
	return translate(b.db.WithContext(ctx).Create(&gm).Error)
}

func (b *Backend) GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error) {
	var gm model.Asset
	if err := b.db.WithContext(ctx).First(&gm, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	a := convert.AssetToCore(gm)
	return &a, nil
}

func (b *Backend) ListAssets(ctx context.Context, t core.AssetType, locationID *uuid.UUID) ([]core.Asset, error) {
	q := b.db.WithContext(ctx).Where("type = ?", string(t))
	if locationID != nil {
		q = q.Where("location_id = ?", *locationID)
	}

	var gms []model.Asset
	if err := q.Order("created_at").Find(&gms).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]core.Asset, len(gms))
	for i, gm := range gms {
		out[i] = convert.AssetToCore(gm)
	}
	return out, nil
}

func (b *Backend) LookupAssetFile(ctx context.Context, t core.AssetType, filename string) (*core.Asset, string, error) {
	var gm model.Asset
	err := b.db.WithContext(ctx).
		First(&gm, "type = ? AND filename = ?", string(t), filename).Error
	if err != nil {
		return nil, "", translate(err)
	}
	a := convert.AssetToCore(gm)
	return &a, gm.StoragePath, nil
}

func (b *Backend) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Asset{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrNotFound
		}

		if err := tx.Model(&model.Hotspot{}).Where("map_pin_id = ?", id).
			Update("map_pin_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Hotspot{}).Where("ui_element_id = ?", id).
			Update("ui_element_id", nil).Error; err != nil {
			return err
		}

		for _, col := range []string{"dive_in_id", "floor_level_id", "zoom_out_id"} {
			if err := tx.Model(&model.Playlist{}).Where(col+" = ?", id).
				Update(col, nil).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Hotspots

func (b *Backend) CreateHotspot(ctx context.Context, h *core.Hotspot) error {
	if h == nil || len(h.Coordinates) < 3 {
		return fmt.Errorf("%w: hotspot requires at least 3 coordinates", core.ErrInvalid)
	}
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now

	gm, err := convert.HotspotToGorm(*h)
	if err != nil {
		return err
	}
	h.CenterPoint = core.Point{X: gm.CenterX, Y: gm.CenterY}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Location{}).Where("id = ?", h.LocationID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return core.ErrNotFound
		}

		if err := tx.Create(&gm).Error; err != nil {
			return err
		}

		if h.Type == core.HotspotPrimary {
			p := model.Playlist{
				ID:        uuid.New(),
				HotspotID: h.ID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) GetHotspot(ctx context.Context, id uuid.UUID) (*core.Hotspot, error) {
	var gm model.Hotspot
	if err := b.db.WithContext(ctx).First(&gm, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	h, err := convert.HotspotToCore(gm)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (b *Backend) ListHotspotsByLocation(ctx context.Context, locationID uuid.UUID) ([]core.Hotspot, error) {
	var gms []model.Hotspot
	err := b.db.WithContext(ctx).Where("location_id = ?", locationID).
		Order("created_at").Find(&gms).Error
	if err != nil {
		return nil, translate(err)
	}

	out := make([]core.Hotspot, 0, len(gms))
	for _, gm := range gms {
		h, err := convert.HotspotToCore(gm)
		if err != nil {
			b.logger.Error("skipping hotspot with malformed geometry", "id", gm.ID, "error", err)
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (b *Backend) UpdateHotspot(ctx context.Context, h *core.Hotspot) error {
	if h == nil || len(h.Coordinates) < 3 {
		return fmt.Errorf("%w: hotspot requires at least 3 coordinates", core.ErrInvalid)
	}

	var existing model.Hotspot
	if err := b.db.WithContext(ctx).First(&existing, "id = ?", h.ID).Error; err != nil {
		return translate(err)
	}
	h.LocationID = existing.LocationID
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = time.Now()

	gm, err := convert.HotspotToGorm(*h)
	if err != nil {
		return err
	}
	h.CenterPoint = core.Point{X: gm.CenterX, Y: gm.CenterY}
	return translate(b.db.WithContext(ctx).Save(&gm).Error)
}

func (b *Backend) DeleteHotspot(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Hotspot{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrNotFound
		}
		return tx.Delete(&model.Playlist{}, "hotspot_id = ?", id).Error
	})
}

// Playlists

func (b *Backend) GetPlaylist(ctx context.Context, id uuid.UUID) (*core.Playlist, error) {
	var gm model.Playlist
	if err := b.db.WithContext(ctx).First(&gm, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	p := convert.PlaylistToCore(gm)
	return &p, nil
}

func (b *Backend) GetPlaylistByHotspot(ctx context.Context, hotspotID uuid.UUID) (*core.Playlist, error) {
	var gm model.Playlist
	if err := b.db.WithContext(ctx).First(&gm, "hotspot_id = ?", hotspotID).Error; err != nil {
		return nil, translate(err)
	}
	p := convert.PlaylistToCore(gm)
	return &p, nil
}

func (b *Backend) UpdatePlaylist(ctx context.Context, p *core.Playlist) error {
	if p == nil {
		return core.ErrInvalid
	}

	var existing model.Playlist
	if err := b.db.WithContext(ctx).First(&existing, "id = ?", p.ID).Error; err != nil {
		return translate(err)
	}

	seen := make(map[uuid.UUID]struct{}, 3)
	refs := make([]uuid.UUID, 0, 3)
	for _, ref := range []*uuid.UUID{p.DiveInID, p.FloorLevelID, p.ZoomOutID} {
		if ref == nil {
			continue
		}
		if _, dup := seen[*ref]; dup {
			continue
		}
		seen[*ref] = struct{}{}
		refs = append(refs, *ref)
	}
	if len(refs) > 0 {
		var count int64
		if err := b.db.WithContext(ctx).Model(&model.Asset{}).
			Where("id IN ?", refs).Count(&count).Error; err != nil {
			return err
		}
		if count != int64(len(refs)) {
			return fmt.Errorf("%w: playlist references an unknown asset", core.ErrInvalid)
		}
	}

	p.HotspotID = existing.HotspotID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()

	gm := convert.PlaylistToGorm(*p)
	return translate(b.db.WithContext(ctx).Save(&gm).Error)
}
