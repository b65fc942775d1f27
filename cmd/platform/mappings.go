package main

import (
	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/tabular"
)

// Candidate column names per logical field, tried in order against the
// document header. These cover the spellings the source exports are known
// to use.
var (
	buildingCandidates = map[string][]string{
		"geometry":            {"geometry"},
		"address":             {"yand_addr", "address", "addr"},
		"project_type":        {"project_type", "project_ty"},
		"living_area":         {"living_area", "area_resid", "area_residential"},
		"storeys_count":       {"building:levels", "building:level", "building_l", "storeys_count", "storey_count"},
		"resident_number":     {"resident_number", "population"},
		"osm_id":              {"osm_id", "id", "@id"},
		"central_heating":     {"central_heating"},
		"central_water":       {"central_water"},
		"central_hot_water":   {"central_hot_water", "central_hotwater"},
		"central_electricity": {"central_electricity", "central_electro"},
		"central_gas":         {"central_gas"},
		"refusechute":         {"refusechute"},
		"ukname":              {"ukname"},
		"is_failing":          {"is_failing", "failure"},
		"lift_count":          {"lift_count", "elevators_", "elevators_count"},
		"repair_years":        {"repair_years"},
		"is_living":           {"is_living"},
		"building_year":       {"built_year", "building_year"},
		"modeled":             {"modeled_fields"},
	}

	serviceCandidates = map[string][]string{
		"latitude":      {"x", "latitude", "lat"},
		"longitude":     {"y", "longitude", "lon", "lng"},
		"geometry":      {"geometry"},
		"name":          {"name"},
		"opening_hours": {"opening_hours"},
		"website":       {"contact:website", "website"},
		"phone":         {"contact:phone", "phone"},
		"address":       {"yand_adr", "yand_addr", "address", "addr"},
		"capacity":      {"capacity"},
		"osm_id":        {"id", "osm_id"},
	}

	divisionCandidates = map[string][]string{
		"geometry":          {"geometry"},
		"type_name":         {"type", "type_name"},
		"name":              {"name"},
		"parent_same_type":  {"parent", "parent_same_type"},
		"parent_other_type": {"parent_other", "parent_other_type"},
		"population":        {"population"},
	}

	blockCandidates = map[string][]string{
		"geometry": {"geometry"},
	}
)

func detect(table *domain.Table, candidates map[string][]string, field string) string {
	return tabular.DetectColumn(table.Columns, candidates[field])
}

// loadBuildingMapping builds the column mapping from the optional YAML
// profile, auto-detecting any field the profile leaves empty.
func loadBuildingMapping(path string, table *domain.Table) (domain.BuildingMapping, error) {
	var m domain.BuildingMapping
	if path != "" {
		if err := domain.LoadMappingProfile(path, &m); err != nil {
			return m, err
		}
	}
	fill(&m.Geometry, table, buildingCandidates, "geometry")
	fill(&m.Address, table, buildingCandidates, "address")
	fill(&m.ProjectType, table, buildingCandidates, "project_type")
	fill(&m.LivingArea, table, buildingCandidates, "living_area")
	fill(&m.StoreysCount, table, buildingCandidates, "storeys_count")
	fill(&m.ResidentNumber, table, buildingCandidates, "resident_number")
	fill(&m.OSMID, table, buildingCandidates, "osm_id")
	fill(&m.CentralHeating, table, buildingCandidates, "central_heating")
	fill(&m.CentralWater, table, buildingCandidates, "central_water")
	fill(&m.CentralHotWater, table, buildingCandidates, "central_hot_water")
	fill(&m.CentralElectricity, table, buildingCandidates, "central_electricity")
	fill(&m.CentralGas, table, buildingCandidates, "central_gas")
	fill(&m.RefuseChute, table, buildingCandidates, "refusechute")
	fill(&m.UKName, table, buildingCandidates, "ukname")
	fill(&m.IsFailing, table, buildingCandidates, "is_failing")
	fill(&m.LiftCount, table, buildingCandidates, "lift_count")
	fill(&m.RepairYears, table, buildingCandidates, "repair_years")
	fill(&m.IsLiving, table, buildingCandidates, "is_living")
	fill(&m.BuildingYear, table, buildingCandidates, "building_year")
	fill(&m.Modeled, table, buildingCandidates, "modeled")
	return m, m.Validate()
}

func loadServiceMapping(path string, table *domain.Table) (domain.ServiceMapping, error) {
	var m domain.ServiceMapping
	if path != "" {
		if err := domain.LoadMappingProfile(path, &m); err != nil {
			return m, err
		}
	}
	fill(&m.Latitude, table, serviceCandidates, "latitude")
	fill(&m.Longitude, table, serviceCandidates, "longitude")
	fill(&m.Geometry, table, serviceCandidates, "geometry")
	fill(&m.Name, table, serviceCandidates, "name")
	fill(&m.OpeningHours, table, serviceCandidates, "opening_hours")
	fill(&m.Website, table, serviceCandidates, "website")
	fill(&m.Phone, table, serviceCandidates, "phone")
	fill(&m.Address, table, serviceCandidates, "address")
	fill(&m.Capacity, table, serviceCandidates, "capacity")
	fill(&m.OSMID, table, serviceCandidates, "osm_id")
	return m, m.Validate()
}

func loadDivisionMapping(path string, table *domain.Table) (domain.DivisionMapping, error) {
	var m domain.DivisionMapping
	if path != "" {
		if err := domain.LoadMappingProfile(path, &m); err != nil {
			return m, err
		}
	}
	fill(&m.Geometry, table, divisionCandidates, "geometry")
	fill(&m.TypeName, table, divisionCandidates, "type_name")
	fill(&m.Name, table, divisionCandidates, "name")
	fill(&m.ParentSameType, table, divisionCandidates, "parent_same_type")
	fill(&m.ParentOtherType, table, divisionCandidates, "parent_other_type")
	fill(&m.Population, table, divisionCandidates, "population")
	return m, m.Validate()
}

func loadBlockMapping(path string, table *domain.Table) (domain.BlockMapping, error) {
	var m domain.BlockMapping
	if path != "" {
		if err := domain.LoadMappingProfile(path, &m); err != nil {
			return m, err
		}
	}
	fill(&m.Geometry, table, blockCandidates, "geometry")
	return m, m.Validate()
}

func fill(field *string, table *domain.Table, candidates map[string][]string, name string) {
	if *field == "" {
		*field = detect(table, candidates, name)
	}
}
