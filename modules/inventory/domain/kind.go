package domain

// EntityKind identifies one of the reconcilable inventory entity kinds.
type EntityKind string

const (
	KindBuilding           EntityKind = "building"
	KindService            EntityKind = "service"
	KindAdministrativeUnit EntityKind = "administrative_unit"
	KindMunicipality       EntityKind = "municipality"
	KindBlock              EntityKind = "block"
)

// IDColumn returns the name of the identifier column appended to the audit
// output for this kind.
func (k EntityKind) IDColumn() string {
	switch k {
	case KindBuilding:
		return "building_id"
	case KindService:
		return "functional_obj_id"
	case KindAdministrativeUnit, KindMunicipality:
		return "adm_id"
	case KindBlock:
		return "block_id"
	}
	return "id"
}

func (k EntityKind) String() string { return string(k) }

// KindDescriptor parameterizes the generic match resolver per entity kind.
// One descriptor replaces the per-kind matching procedures of the legacy
// pipeline.
type KindDescriptor struct {
	Kind EntityKind

	// Addressable enables the address-suffix matching path, which takes
	// priority over geometry matching.
	Addressable bool

	// AddressDistanceM is the maximum distance in meters between the
	// candidate centroid and a stored entity centroid for an address match.
	AddressDistanceM float64

	// OverlapThreshold is the minimal overlap ratio
	// (intersection / min(areas)) at which a geometric hit counts as the
	// same entity.
	OverlapThreshold float64

	// MaxOverlapPeers is the number of overlapping stored peers above which
	// the candidate is ambiguous and must be skipped, never guessed.
	MaxOverlapPeers int
}

var (
	BuildingDescriptor = KindDescriptor{
		Kind:             KindBuilding,
		Addressable:      true,
		AddressDistanceM: 100,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}

	// Services live on buildings located with a looser address radius.
	ServiceBuildingDescriptor = KindDescriptor{
		Kind:             KindService,
		Addressable:      true,
		AddressDistanceM: 200,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}

	// Services hosted by non-building physical objects match by geometry only.
	ServiceObjectDescriptor = KindDescriptor{
		Kind:             KindService,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}

	AdministrativeUnitDescriptor = KindDescriptor{
		Kind:             KindAdministrativeUnit,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}

	MunicipalityDescriptor = KindDescriptor{
		Kind:             KindMunicipality,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}

	BlockDescriptor = KindDescriptor{
		Kind:             KindBlock,
		OverlapThreshold: 0.3,
		MaxOverlapPeers:  2,
	}
)
