package domain

// City is the reconciliation target looked up by name, code or identifier.
type City struct {
	ID   int64
	Name string
}

// ServiceType is the classifier of a functional object, with the capacity
// range used to backfill services that arrive without a real capacity.
type ServiceType struct {
	ID                   int64
	FunctionID           int64
	InfrastructureTypeID int64
	Name                 string
	IsBuilding           bool
	CapacityMin          int64
	CapacityMax          int64
}

// BuildingRecord is the persisted state of a building relevant to diffing.
// Attributes are keyed by database column name.
type BuildingRecord struct {
	ID         int64
	ObjectID   int64
	Attributes map[string]any
	Properties map[string]any
	Modeled    map[string]int
}

// ServiceRecord is the persisted state of a functional object relevant to
// diffing. Attributes are keyed by database column name.
type ServiceRecord struct {
	ID             int64
	Attributes     map[string]any
	Capacity       int64
	IsCapacityReal bool
	Properties     map[string]any
}

// DivisionRecord is the persisted state of an administrative unit or
// municipality relevant to diffing. Parent links are exposed by name, the
// way documents reference them.
type DivisionRecord struct {
	ID              int64
	CityID          int64
	Name            string
	TypeName        string // lowercased full type name
	ParentName      string
	OtherParentName string
	Geometry        string // store-canonical geometry text
	Population      *int64
}

// Location is a containment snapshot of a physical object inside the
// territorial hierarchies, resolved from its centroid at write time.
type Location struct {
	AdministrativeUnitID *int64
	MunicipalityID       *int64
	BlockID              *int64
}
