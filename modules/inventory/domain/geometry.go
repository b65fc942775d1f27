package domain

// Geometry is a validated geometry reference in the city's coordinate frame.
// The GeoJSON text is the canonical representation; all geometric math is
// delegated to the spatial store, which produced the centroid and type tag
// during validation.
type Geometry struct {
	GeoJSON string
	Type    string // as reported by the store, e.g. "ST_Point", "ST_Polygon"
	Lon     float64
	Lat     float64
}

func (g Geometry) IsPoint() bool { return g.Type == "ST_Point" }

func (g Geometry) IsZero() bool { return g.GeoJSON == "" }

// Candidate is a row's footprint offered to the match resolver: the decoded
// geometry plus the normalized address suffix, when the entity kind carries
// addresses.
type Candidate struct {
	Geometry Geometry
	Address  string
}

// MatchKind is the resolver verdict for one candidate.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchAmbiguous
	MatchInvalid
)

// OverlapPeer is one stored entity geometrically related to a candidate.
type OverlapPeer struct {
	ID       int64
	ObjectID int64 // hosting physical object, when distinct from ID
	Address  string
	GeomType string
	Ratio    float64
	Equal    bool
}

// Resolution is the match resolver output. On a partial-overlap MatchNone,
// Clipped holds the candidate geometry minus the union of the overlapping
// peers so the inserted entity does not duplicate area owned by a neighbor.
type Resolution struct {
	Kind    MatchKind
	Peer    OverlapPeer
	Peers   int
	ByAddr  bool
	Clipped *Geometry
}
