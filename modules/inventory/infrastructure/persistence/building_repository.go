package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// BuildingRepository manages the building extension of a physical object.
// Column sets are supplied by the caller from the batch mapping, so the
// repository stays agnostic of which legacy columns a document carries.
type BuildingRepository struct{}

func NewBuildingRepository() *BuildingRepository {
	return &BuildingRepository{}
}

// Get loads the named attribute columns plus properties and modeled flags
// for one building.
func (r *BuildingRepository) Get(ctx context.Context, id int64, columns []string) (domain.BuildingRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.BuildingRecord{}, err
	}
	query := `SELECT physical_object_id, ` + strings.Join(columns, ", ") +
		`, properties, COALESCE(modeled, '{}'::jsonb) FROM buildings WHERE id = $1`

	dest := make([]any, 0, len(columns)+3)
	rec := domain.BuildingRecord{ID: id, Attributes: make(map[string]any, len(columns))}
	dest = append(dest, &rec.ObjectID)
	values := make([]any, len(columns))
	for i := range columns {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &rec.Properties, &rec.Modeled)

	if err := tx.QueryRow(ctx, query, id).Scan(dest...); err != nil {
		return domain.BuildingRecord{}, err
	}
	for i, col := range columns {
		rec.Attributes[col] = values[i]
	}
	return rec, nil
}

// Insert creates a building on an existing physical object. columns and
// values are parallel; properties and modeled land in their jsonb columns.
func (r *BuildingRepository) Insert(ctx context.Context, objectID int64, columns []string, values []any, properties map[string]any, modeled map[string]int) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	cols := append([]string{"physical_object_id"}, columns...)
	cols = append(cols, "properties", "modeled")
	args := append([]any{objectID}, values...)
	args = append(args, jsonbMap(properties), modeled)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO buildings (`+strings.Join(cols, ", ")+`)
		 VALUES (`+placeholders(len(cols))+`) RETURNING id`,
		args...,
	).Scan(&id)
	return id, err
}

// UpdateColumns applies the minimal change-set computed by the differ.
func (r *BuildingRepository) UpdateColumns(ctx context.Context, id int64, columns []string, values []any) error {
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
		`UPDATE buildings SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		append([]any{id}, values...)...)
	return err
}

// MergeProperties merges the candidate's extra properties into the stored
// jsonb map, overwriting overlapping keys and leaving absent keys alone.
func (r *BuildingRepository) MergeProperties(ctx context.Context, id int64, properties map[string]any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE buildings SET properties = properties || $2::jsonb WHERE id = $1`,
		id, jsonbMap(properties))
	return err
}

// SetModeled replaces the modeled-flag set.
func (r *BuildingRepository) SetModeled(ctx context.Context, id int64, modeled map[string]int) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE buildings SET modeled = $2::jsonb WHERE id = $1`,
		id, modeled)
	return err
}

// placeholders renders "$1, $2, ..., $n".
func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// jsonbMap keeps jsonb parameters non-null: an empty candidate map merges as
// the empty object.
func jsonbMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
