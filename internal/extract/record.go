package extract

import "strings"

// Boundary type enum values.
const (
	BoundaryRoad    = "road"
	BoundaryRiver   = "river"
	BoundaryRailway = "railway"
	BoundaryOther   = "other"
)

// Include type enum values.
const (
	IncludeVillage   = "village"
	IncludeCommunity = "community"
	IncludeEstate    = "estate"
	IncludeOther     = "other"
)

// Relation enum values. A nil relation means the source text states no
// direction.
const (
	RelEastOf  = "east_of"
	RelWestOf  = "west_of"
	RelSouthOf = "south_of"
	RelNorthOf = "north_of"
)

// BoundaryRef is a linear feature (road, river, railway) used as a stated
// edge of a catchment zone, with the side of the line the zone lies on.
type BoundaryRef struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Relation *string `json:"relation"`
}

// IncludeRef is a named block area (village, community, housing estate)
// explicitly listed as part of the zone.
type IncludeRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchoolRecord is one school's extracted catchment description. Records are
// identified within a response by position; duplicate names across documents
// are valid and never merged at this layer.
type SchoolRecord struct {
	SchoolName string        `json:"school_name"`
	Boundaries []BoundaryRef `json:"boundaries"`
	Includes   []IncludeRef  `json:"includes"`
}

// Normalize trims names, clamps unknown enum values to "other" and invalid
// relations to null, and drops boundary/include entries with empty names.
// The model occasionally invents enum values outside the schema even under
// structured output; clamping keeps the record usable instead of dropping it.
func (r *SchoolRecord) Normalize() {
	r.SchoolName = strings.TrimSpace(r.SchoolName)

	bs := r.Boundaries[:0]
	for _, b := range r.Boundaries {
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			continue
		}
		switch b.Type {
		case BoundaryRoad, BoundaryRiver, BoundaryRailway, BoundaryOther:
		default:
			b.Type = BoundaryOther
		}
		if b.Relation != nil {
			switch *b.Relation {
			case RelEastOf, RelWestOf, RelSouthOf, RelNorthOf:
			default:
				b.Relation = nil
			}
		}
		bs = append(bs, b)
	}
	r.Boundaries = bs

	is := r.Includes[:0]
	for _, inc := range r.Includes {
		inc.Name = strings.TrimSpace(inc.Name)
		if inc.Name == "" {
			continue
		}
		switch inc.Type {
		case IncludeVillage, IncludeCommunity, IncludeEstate, IncludeOther:
		default:
			inc.Type = IncludeOther
		}
		is = append(is, inc)
	}
	r.Includes = is
}
