package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// serviceColumns are the fixed scalar columns subject to the minimal
// change-set diff, in stable order.
var serviceColumns = []string{"name", "opening_hours", "website", "phone"}

// ServiceRepository manages functional objects: the services hosted by
// physical objects.
type ServiceRepository struct{}

func NewServiceRepository() *ServiceRepository {
	return &ServiceRepository{}
}

// FindHosted locates a service of the given type and name on a physical
// object. The (object, type, name) triple identifies a service for update
// purposes; 0 means no such service exists yet.
func (r *ServiceRepository) FindHosted(ctx context.Context, objectID, serviceTypeID int64, name string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM functional_objects
		WHERE physical_object_id = $1 AND city_service_type_id = $2 AND name = $3
		LIMIT 1`,
		objectID, serviceTypeID, name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// Get loads the diffable state of one service.
func (r *ServiceRepository) Get(ctx context.Context, id int64) (domain.ServiceRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	rec := domain.ServiceRecord{ID: id, Attributes: make(map[string]any, len(serviceColumns))}
	var name, openingHours, website, phone any
	err = tx.QueryRow(ctx, `
		SELECT name, opening_hours, website, phone, capacity, is_capacity_real, properties
		FROM functional_objects WHERE id = $1`,
		id,
	).Scan(&name, &openingHours, &website, &phone, &rec.Capacity, &rec.IsCapacityReal, &rec.Properties)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	rec.Attributes["name"] = name
	rec.Attributes["opening_hours"] = openingHours
	rec.Attributes["website"] = website
	rec.Attributes["phone"] = phone
	return rec, nil
}

// Insert creates a service on a physical object.
func (r *ServiceRepository) Insert(ctx context.Context, objectID int64, st domain.ServiceType, attrs map[string]any, capacity int64, isCapacityReal bool, properties map[string]any) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO functional_objects (name, opening_hours, website, phone,
			city_service_type_id, city_function_id, city_infrastructure_type_id,
			capacity, is_capacity_real, physical_object_id, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		attrs["name"], attrs["opening_hours"], attrs["website"], attrs["phone"],
		st.ID, st.FunctionID, st.InfrastructureTypeID,
		capacity, isCapacityReal, objectID, jsonbMap(properties),
	).Scan(&id)
	return id, err
}

// UpdateColumns applies the minimal change-set computed by the differ.
func (r *ServiceRepository) UpdateColumns(ctx context.Context, id int64, columns []string, values []any) error {
	if len(columns) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
	}
	_, err = tx.Exec(ctx,
		`UPDATE functional_objects SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		append([]any{id}, values...)...)
	return err
}

// SetCapacity stores a source-supplied capacity, marking it real.
func (r *ServiceRepository) SetCapacity(ctx context.Context, id, capacity int64, isReal bool) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE functional_objects SET capacity = $2, is_capacity_real = $3 WHERE id = $1`,
		id, capacity, isReal)
	return err
}

// MergeProperties merges the candidate's extra properties into the stored
// jsonb map.
func (r *ServiceRepository) MergeProperties(ctx context.Context, id int64, properties map[string]any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE functional_objects SET properties = properties || $2::jsonb WHERE id = $1`,
		id, jsonbMap(properties))
	return err
}

// InsertHostBuilding creates the bare building record hosting a newly
// inserted building-bound service. The address is already prefixed.
func (r *ServiceRepository) InsertHostBuilding(ctx context.Context, objectID int64, address *string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO buildings (physical_object_id, address) VALUES ($1, $2) RETURNING id`,
		objectID, address,
	).Scan(&id)
	return id, err
}
