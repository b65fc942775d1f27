package domain

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ServiceMapping binds logical service fields to document column names.
// Empty values mean the field is absent from the document.
type ServiceMapping struct {
	Latitude     string `yaml:"latitude"`
	Longitude    string `yaml:"longitude"`
	Geometry     string `yaml:"geometry"`
	Name         string `yaml:"name"`
	OpeningHours string `yaml:"opening_hours"`
	Website      string `yaml:"website"`
	Phone        string `yaml:"phone"`
	Address      string `yaml:"address"`
	Capacity     string `yaml:"capacity"`
	OSMID        string `yaml:"osm_id"`
}

func (m *ServiceMapping) Validate() error {
	normalizeMapping(&m.Latitude, &m.Longitude, &m.Geometry, &m.Name, &m.OpeningHours,
		&m.Website, &m.Phone, &m.Address, &m.Capacity, &m.OSMID)
	if m.Geometry == "" && (m.Latitude == "" || m.Longitude == "") {
		return &ValidationError{Reason: "at least one of (latitude+longitude) and (geometry) must be set"}
	}
	return nil
}

// BuildingMapping binds logical building fields to document column names.
type BuildingMapping struct {
	Geometry           string `yaml:"geometry" validate:"required"`
	Address            string `yaml:"address"`
	ProjectType        string `yaml:"project_type"`
	LivingArea         string `yaml:"living_area"`
	StoreysCount       string `yaml:"storeys_count"`
	ResidentNumber     string `yaml:"resident_number"`
	OSMID              string `yaml:"osm_id"`
	CentralHeating     string `yaml:"central_heating"`
	CentralWater       string `yaml:"central_water"`
	CentralHotWater    string `yaml:"central_hot_water"`
	CentralElectricity string `yaml:"central_electricity"`
	CentralGas         string `yaml:"central_gas"`
	RefuseChute        string `yaml:"refusechute"`
	UKName             string `yaml:"ukname"`
	IsFailing          string `yaml:"is_failing"`
	LiftCount          string `yaml:"lift_count"`
	RepairYears        string `yaml:"repair_years"`
	IsLiving           string `yaml:"is_living"`
	BuildingYear       string `yaml:"building_year"`
	Modeled            string `yaml:"modeled"`
}

func (m *BuildingMapping) Validate() error {
	normalizeMapping(&m.Address, &m.ProjectType, &m.LivingArea, &m.StoreysCount,
		&m.ResidentNumber, &m.OSMID, &m.CentralHeating, &m.CentralWater, &m.CentralHotWater,
		&m.CentralElectricity, &m.CentralGas, &m.RefuseChute, &m.UKName, &m.IsFailing,
		&m.LiftCount, &m.RepairYears, &m.IsLiving, &m.BuildingYear, &m.Modeled)
	if err := validate.Struct(m); err != nil {
		return &ValidationError{Column: "geometry", Reason: "building geometry column name must be set"}
	}
	return nil
}

// AttributeColumn links a mapped document field to its database column.
type AttributeColumn struct {
	DBColumn string
	Type     ValueType
	Column   func() string // mapped document column, "" when unmapped
}

// AttributeColumns lists the scalar building columns subject to the minimal
// change-set diff, in stable order. Legacy column spellings are preserved.
func (m *BuildingMapping) AttributeColumns() []AttributeColumn {
	return []AttributeColumn{
		{"address", TypeString, func() string { return m.Address }},
		{"project_type", TypeString, func() string { return m.ProjectType }},
		{"living_area", TypeFloat, func() string { return m.LivingArea }},
		{"storeys_count", TypeInt, func() string { return m.StoreysCount }},
		{"resident_number", TypeInt, func() string { return m.ResidentNumber }},
		{"central_heating", TypeBool, func() string { return m.CentralHeating }},
		{"central_water", TypeBool, func() string { return m.CentralWater }},
		{"central_hotwater", TypeBool, func() string { return m.CentralHotWater }},
		{"central_electro", TypeBool, func() string { return m.CentralElectricity }},
		{"central_gas", TypeBool, func() string { return m.CentralGas }},
		{"refusechute", TypeBool, func() string { return m.RefuseChute }},
		{"ukname", TypeString, func() string { return m.UKName }},
		{"failure", TypeBool, func() string { return m.IsFailing }},
		{"lift_count", TypeInt, func() string { return m.LiftCount }},
		{"repair_years", TypeString, func() string { return m.RepairYears }},
		{"is_living", TypeBool, func() string { return m.IsLiving }},
		{"building_year", TypeInt, func() string { return m.BuildingYear }},
	}
}

// DivisionMapping binds administrative unit / municipality fields to
// document column names.
type DivisionMapping struct {
	Geometry        string `yaml:"geometry" validate:"required"`
	TypeName        string `yaml:"type_name" validate:"required"`
	Name            string `yaml:"name" validate:"required"`
	ParentSameType  string `yaml:"parent_same_type"`
	ParentOtherType string `yaml:"parent_other_type"`
	Population      string `yaml:"population"`
}

func (m *DivisionMapping) Validate() error {
	normalizeMapping(&m.ParentSameType, &m.ParentOtherType, &m.Population)
	if err := validate.Struct(m); err != nil {
		return &ValidationError{Reason: "division geometry, type and name column names must be set"}
	}
	return nil
}

// BlockMapping binds city block fields to document column names.
type BlockMapping struct {
	Geometry string `yaml:"geometry" validate:"required"`
}

func (m *BlockMapping) Validate() error {
	if err := validate.Struct(m); err != nil {
		return &ValidationError{Column: "geometry", Reason: "block geometry column name must be set"}
	}
	return nil
}

// PropertiesMapping maps extra-property keys (as stored in the jsonb
// properties of an entity) to document column names.
type PropertiesMapping map[string]string

// LoadMappingProfile fills the given mapping struct from a YAML profile file.
func LoadMappingProfile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, into)
}

// normalizeMapping treats "" and "-" as intentionally unset.
func normalizeMapping(fields ...*string) {
	for _, f := range fields {
		if *f == "-" {
			*f = ""
		}
	}
}
