package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// CityRepository resolves the reference entities a batch reconciles against:
// the city itself, service type classifiers and division type classifiers.
// A missing reference is batch-fatal.
type CityRepository struct{}

func NewCityRepository() *CityRepository {
	return &CityRepository{}
}

// Resolve finds a city by name or code.
func (r *CityRepository) Resolve(ctx context.Context, nameOrCode string) (domain.City, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.City{}, err
	}
	var city domain.City
	err = tx.QueryRow(ctx,
		`SELECT id, name FROM cities WHERE name = $1 OR code = $1`,
		nameOrCode,
	).Scan(&city.ID, &city.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.City{}, &domain.ReferenceNotFoundError{Entity: "city", Name: nameOrCode}
	}
	if err != nil {
		return domain.City{}, err
	}
	return city, nil
}

// ServiceType finds a service type classifier by name or code, along with
// the capacity range used to backfill services arriving without a capacity.
func (r *CityRepository) ServiceType(ctx context.Context, nameOrCode string) (domain.ServiceType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ServiceType{}, err
	}
	var st domain.ServiceType
	err = tx.QueryRow(ctx, `
		SELECT st.id, cf.id, it.id, st.name, st.is_building, st.capacity_min, st.capacity_max
		FROM city_service_types st
			JOIN city_functions cf ON st.city_function_id = cf.id
			JOIN infrastructure_types it ON cf.infrastructure_type_id = it.id
		WHERE st.name = $1 OR st.code = $1`,
		nameOrCode,
	).Scan(&st.ID, &st.FunctionID, &st.InfrastructureTypeID, &st.Name,
		&st.IsBuilding, &st.CapacityMin, &st.CapacityMax)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ServiceType{}, &domain.ReferenceNotFoundError{Entity: "service type", Name: nameOrCode}
	}
	if err != nil {
		return domain.ServiceType{}, err
	}
	return st, nil
}

// DivisionTypes loads the type classifier table for one division kind,
// keyed by lowercased full name.
func (r *CityRepository) DivisionTypes(ctx context.Context, kind domain.EntityKind) (map[string]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	table := "administrative_unit_types"
	if kind == domain.KindMunicipality {
		table = "municipality_types"
	}
	rows, err := tx.Query(ctx, `SELECT lower(full_name), id FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		types[strings.TrimSpace(name)] = id
	}
	return types, rows.Err()
}
