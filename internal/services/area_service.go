package services

import (
	"context"
	"log/slog"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
)

// AreaService owns the write path of areas of interest. Area, centroid and validity are
// derived here on every write, never by the storage layer.
type AreaService struct {
	store    repository.AreaStore
	geometry *GeometryService
}

func NewAreaService(store repository.AreaStore, geometry *GeometryService) *AreaService {
	return &AreaService{store: store, geometry: geometry}
}

func (s *AreaService) Submit(ctx context.Context, req models.SubmitAreaRequest) (*models.AreaOfInterest, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}

	props, err := s.geometry.DeriveProperties(req.Geometry)
	if err != nil {
		return nil, err
	}

	area := &models.AreaOfInterest{
		Name:         name,
		Description:  req.Description,
		Geometry:     req.Geometry,
		OwnerID:      req.OwnerID,
		IsActive:     true,
		CropType:     req.CropType,
		AreaHectares: props.AreaHectares,
		CentroidLat:  props.CentroidLat,
		CentroidLon:  props.CentroidLon,
	}
	if err := s.store.CreateArea(ctx, area); err != nil {
		return nil, err
	}

	slog.Info("Area of interest submitted",
		"id", area.ID,
		"owner_id", area.OwnerID,
		"area_hectares", area.AreaHectares)
	return area, nil
}

// Update applies the non-nil fields. A new geometry is validated and its derived values recomputed.
func (s *AreaService) Update(ctx context.Context, id uuid.UUID, req models.UpdateAreaRequest) (*models.AreaOfInterest, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	area, err := s.store.GetArea(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, models.NewValidationError("name", "is required")
		}
		area.Name = name
	}
	if req.Description != nil {
		area.Description = *req.Description
	}
	if req.IsActive != nil {
		area.IsActive = *req.IsActive
	}
	if req.CropType != nil {
		area.CropType = req.CropType
	}
	if req.Geometry != nil {
		props, err := s.geometry.DeriveProperties(*req.Geometry)
		if err != nil {
			return nil, err
		}
		area.Geometry = *req.Geometry
		area.AreaHectares = props.AreaHectares
		area.CentroidLat = props.CentroidLat
		area.CentroidLon = props.CentroidLon
	}

	if err := s.store.UpdateArea(ctx, area); err != nil {
		return nil, err
	}
	return area, nil
}

func (s *AreaService) Get(ctx context.Context, id uuid.UUID) (*models.AreaOfInterest, error) {
	return s.store.GetArea(ctx, id)
}

func (s *AreaService) List(ctx context.Context, ownerID *uuid.UUID, activeOnly bool) ([]models.AreaOfInterest, error) {
	return s.store.ListAreas(ctx, ownerID, activeOnly)
}

func (s *AreaService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteArea(ctx, id)
}
