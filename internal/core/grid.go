package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Warehouse layout. Levels are listed top to bottom.
var (
	Aisles  = []string{"P1", "P2", "P3"}
	Shelves = []string{"E1", "E2", "E3", "E4"}
	Levels  = []string{"N3", "N2", "N1"}
)

// Occupancy classes.
type Occupancy string

const (
	OccupancyEmpty  Occupancy = "empty"
	OccupancyLow    Occupancy = "low"
	OccupancyMedium Occupancy = "medium"
	OccupancyHigh   Occupancy = "high"
)

// Occupancy thresholds: a slot stays in a class only while both its stock
// and its volume in liters are within the limit.
const (
	lowStockLimit     = 10
	lowLitersLimit    = 50.0
	mediumStockLimit  = 30
	mediumLitersLimit = 200.0
)

// Location is a parsed "P<n>-E<n>-N<n>" key.
type Location struct {
	Aisle string `json:"aisle"`
	Shelf string `json:"shelf"`
	Level string `json:"level"`
}

func (l Location) String() string {
	return l.Aisle + "-" + l.Shelf + "-" + l.Level
}

// ParseLocation splits s on '-' and requires exactly three parts.
// It does not check the parts against the fixed layout.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Location{}, fmt.Errorf("invalid location %q: want aisle-shelf-level", s)
	}
	return Location{
		Aisle: strings.ToUpper(parts[0]),
		Shelf: strings.ToUpper(parts[1]),
		Level: strings.ToUpper(parts[2]),
	}, nil
}

// UnitVolumeCM3 is length × width × height converted to cubic centimeters.
func UnitVolumeCM3(d Dimensions) float64 {
	f := 1.0
	switch d.Unit {
	case UnitM:
		f = 100
	case UnitIn:
		f = 2.54
	}
	return (d.Length * f) * (d.Width * f) * (d.Height * f)
}

// ClassifyOccupancy maps total stock and liters to an occupancy class.
func ClassifyOccupancy(stock int, liters float64) Occupancy {
	switch {
	case stock == 0:
		return OccupancyEmpty
	case stock <= lowStockLimit && liters <= lowLitersLimit:
		return OccupancyLow
	case stock <= mediumStockLimit && liters <= mediumLitersLimit:
		return OccupancyMedium
	default:
		return OccupancyHigh
	}
}

// SlotStats summarizes the products stored in one slot.
type SlotStats struct {
	ProductCount   int       `json:"productCount"`
	TotalStock     int       `json:"totalStock"`
	TotalVolumeCM3 float64   `json:"totalVolumeCm3"`
	VolumeLiters   float64   `json:"volumeLiters"`
	Occupancy      Occupancy `json:"occupancy"`
}

// Slot is one aisle/shelf/level position.
type Slot struct {
	Location Location  `json:"location"`
	Key      string    `json:"key"`
	Products []Product `json:"products"`
	Stats    SlotStats `json:"stats"`
}

// Shelf holds its slots ordered N3, N2, N1.
type Shelf struct {
	Name  string  `json:"name"`
	Slots []*Slot `json:"slots"`
}

// Aisle holds its shelves ordered E1..E4.
type Aisle struct {
	Name    string   `json:"name"`
	Shelves []*Shelf `json:"shelves"`
}

// GridSummary holds warehouse-wide occupancy figures.
type GridSummary struct {
	TotalSlots    int     `json:"totalLocations"`
	OccupiedSlots int     `json:"occupiedLocations"`
	OccupancyRate float64 `json:"occupancyRate"`
	Unplaced      int     `json:"unplaced"`
}

// Grid is the aggregated warehouse view.
type Grid struct {
	Aisles  []*Aisle    `json:"aisles"`
	Summary GridSummary `json:"summary"`

	// Unplaced lists products whose location is malformed or outside the
	// layout. They are not part of any slot.
	Unplaced []Product `json:"unplacedProducts"`

	index map[string]*Slot
}

// BuildGrid places products into the fixed 3×4×3 layout and computes
// per-slot statistics. Every slot exists even when empty.
func BuildGrid(products []Product) *Grid {
	g := &Grid{index: make(map[string]*Slot, len(Aisles)*len(Shelves)*len(Levels))}

	for _, a := range Aisles {
		aisle := &Aisle{Name: a}
		for _, s := range Shelves {
			shelf := &Shelf{Name: s}
			for _, l := range Levels {
				loc := Location{Aisle: a, Shelf: s, Level: l}
				slot := &Slot{Location: loc, Key: loc.String(), Products: []Product{}}
				shelf.Slots = append(shelf.Slots, slot)
				g.index[slot.Key] = slot
			}
			aisle.Shelves = append(aisle.Shelves, shelf)
		}
		g.Aisles = append(g.Aisles, aisle)
	}

	for _, p := range products {
		loc, err := ParseLocation(p.Location)
		if err != nil {
			g.Unplaced = append(g.Unplaced, p)
			continue
		}
		slot, ok := g.index[loc.String()]
		if !ok {
			g.Unplaced = append(g.Unplaced, p)
			continue
		}
		slot.Products = append(slot.Products, p)
	}

	occupied := 0
	for _, slot := range g.index {
		slot.Stats = computeSlotStats(slot.Products)
		if slot.Stats.ProductCount > 0 {
			occupied++
		}
	}

	total := len(g.index)
	g.Summary = GridSummary{
		TotalSlots:    total,
		OccupiedSlots: occupied,
		OccupancyRate: math.Round(float64(occupied)/float64(total)*1000) / 10,
		Unplaced:      len(g.Unplaced),
	}
	return g
}

func computeSlotStats(products []Product) SlotStats {
	st := SlotStats{ProductCount: len(products)}
	for _, p := range products {
		st.TotalStock += p.Stock
		st.TotalVolumeCM3 += UnitVolumeCM3(p.Dimensions) * float64(p.Stock)
	}
	st.VolumeLiters = st.TotalVolumeCM3 / 1000
	st.Occupancy = ClassifyOccupancy(st.TotalStock, st.VolumeLiters)
	return st
}

// Slot returns the slot for a location key such as "P1-E2-N3".
func (g *Grid) Slot(key string) (*Slot, bool) {
	loc, err := ParseLocation(key)
	if err != nil {
		return nil, false
	}
	s, ok := g.index[loc.String()]
	return s, ok
}

// Slots returns every slot in layout order.
func (g *Grid) Slots() []*Slot {
	out := make([]*Slot, 0, len(g.index))
	for _, a := range g.Aisles {
		for _, sh := range a.Shelves {
			out = append(out, sh.Slots...)
		}
	}
	return out
}

// Slot list orderings.
const (
	SortByLocation = "location"
	SortByQuantity = "quantity"
	SortByVolume   = "volume"
)

// OccupiedSlots returns non-empty slots ordered by the given key.
// Quantity and volume sort descending; anything else keeps layout order.
func (g *Grid) OccupiedSlots(sortBy string) []*Slot {
	var out []*Slot
	for _, s := range g.Slots() {
		if s.Stats.ProductCount > 0 {
			out = append(out, s)
		}
	}
	switch sortBy {
	case SortByQuantity:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Stats.TotalStock > out[j].Stats.TotalStock })
	case SortByVolume:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Stats.TotalVolumeCM3 > out[j].Stats.TotalVolumeCM3 })
	}
	return out
}
