// -----------------------------------------------------------------------
// Image Picker - multi-select gallery over the image catalog
// -----------------------------------------------------------------------

package editor

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/models"
)

// FilterScope narrows the picker gallery against the document's usage index
type FilterScope string

const (
	FilterUnused FilterScope = "unused" // images not placed in the document
	FilterUsed   FilterScope = "used"   // images placed at least once
	FilterAll    FilterScope = "all"    //
)

// PickerCard is one gallery entry as the client renders it
type PickerCard struct {
	Index      int    `json:"index"`       // position in the gallery
	UUID       string `json:"uuid"`        //
	URL        string `json:"url"`         //
	Caption    string `json:"caption"`     //
	InspectURL string `json:"inspect_url"` // detail-view link
	Selected   bool   `json:"selected"`    //
	Visible    bool   `json:"visible"`     // false when filtered out
}

// Picker tracks multi-selection over the image gallery. Plain click toggles
// one card, shift-click selects the inclusive range back to the last-clicked
// card, and the filter scope persists across gallery refreshes. The picker
// only reads the usage index; the ImageManager owns it.
type Picker struct {
	cards      []*PickerCard
	byUUID     map[string]*PickerCard
	selected   map[string]struct{}
	lastIndex  int
	scope      FilterScope
	usage      UsageCounts
	inspectURL func(uuid string) string
	logger     arbor.ILogger
}

// NewPicker creates a picker over the given usage index. inspectURL maps an
// image UUID to its detail-view link and may be nil.
func NewPicker(usage UsageCounts, inspectURL func(uuid string) string, logger arbor.ILogger) *Picker {
	return &Picker{
		byUUID:     make(map[string]*PickerCard),
		selected:   make(map[string]struct{}),
		lastIndex:  -1,
		scope:      FilterAll,
		usage:      usage,
		inspectURL: inspectURL,
		logger:     logger,
	}
}

// Refresh rebuilds the gallery from catalog cards, carrying selection over
// for images that still exist and re-applying the persisted filter scope
func (p *Picker) Refresh(images []*models.ImageCard) {
	p.cards = p.cards[:0]
	p.byUUID = make(map[string]*PickerCard, len(images))

	for i, img := range images {
		card := &PickerCard{
			Index:   i,
			UUID:    img.UUID,
			URL:     img.URL,
			Caption: img.Caption,
			Visible: true,
		}
		if p.inspectURL != nil {
			card.InspectURL = p.inspectURL(img.UUID)
		}
		if _, ok := p.selected[img.UUID]; ok {
			card.Selected = true
		}
		p.cards = append(p.cards, card)
		p.byUUID[img.UUID] = card
	}

	// drop selections for cards that left the catalog
	for uuid := range p.selected {
		if _, ok := p.byUUID[uuid]; !ok {
			delete(p.selected, uuid)
		}
	}
	if p.lastIndex >= len(p.cards) {
		p.lastIndex = -1
	}

	p.ApplyFilter(p.scope)
}

// ToggleSelection flips one card's membership in the selection set and
// records it as the range anchor for a following shift-click
func (p *Picker) ToggleSelection(uuid string) bool {
	card, ok := p.byUUID[uuid]
	if !ok {
		return false
	}
	if card.Selected {
		card.Selected = false
		delete(p.selected, uuid)
	} else {
		card.Selected = true
		p.selected[uuid] = struct{}{}
	}
	p.lastIndex = card.Index
	return card.Selected
}

// HandleRangeSelection selects every card between the range anchor and the
// target inclusive, regardless of prior selection state in that span. With
// no anchor it degrades to selecting the target alone.
func (p *Picker) HandleRangeSelection(uuid string) {
	card, ok := p.byUUID[uuid]
	if !ok {
		return
	}
	if p.lastIndex < 0 {
		card.Selected = true
		p.selected[uuid] = struct{}{}
		p.lastIndex = card.Index
		return
	}

	lo, hi := p.lastIndex, card.Index
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		c := p.cards[i]
		c.Selected = true
		p.selected[c.UUID] = struct{}{}
	}
	p.lastIndex = card.Index
}

// ClearAllSelections empties the set and resets the range anchor
func (p *Picker) ClearAllSelections() {
	for _, c := range p.cards {
		c.Selected = false
	}
	p.selected = make(map[string]struct{})
	p.lastIndex = -1
}

// ApplyFilter shows and hides cards against the usage index and persists the
// scope for later gallery refreshes. Unknown scopes widen to all.
func (p *Picker) ApplyFilter(scope FilterScope) {
	switch scope {
	case FilterUnused, FilterUsed, FilterAll:
	default:
		scope = FilterAll
	}
	p.scope = scope

	visible := 0
	for _, c := range p.cards {
		switch scope {
		case FilterUnused:
			c.Visible = !p.usage.Contains(c.UUID)
		case FilterUsed:
			c.Visible = p.usage.Contains(c.UUID)
		default:
			c.Visible = true
		}
		if c.Visible {
			visible++
		}
	}

	p.logger.Debug().
		Str("scope", string(scope)).
		Int("visible", visible).
		Int("total", len(p.cards)).
		Msg("Picker filter applied")
}

// Scope returns the persisted filter scope
func (p *Picker) Scope() FilterScope {
	return p.scope
}

// Cards returns the gallery in document order
func (p *Picker) Cards() []*PickerCard {
	return p.cards
}

// SelectedUUIDs returns the selection in gallery order, the order a
// multi-card drag inserts them
func (p *Picker) SelectedUUIDs() []string {
	uuids := make([]string, 0, len(p.selected))
	for uuid := range p.selected {
		uuids = append(uuids, uuid)
	}
	sort.Slice(uuids, func(i, j int) bool {
		return p.byUUID[uuids[i]].Index < p.byUUID[uuids[j]].Index
	})
	return uuids
}

// SelectionCount returns the size of the selection set
func (p *Picker) SelectionCount() int {
	return len(p.selected)
}

// IsSelected reports membership in the selection set
func (p *Picker) IsSelected(uuid string) bool {
	_, ok := p.selected[uuid]
	return ok
}

// SelectionBadge returns the count badge text, empty when nothing is
// selected and the badge disappears
func (p *Picker) SelectionBadge() string {
	if len(p.selected) == 0 {
		return ""
	}
	return fmt.Sprintf("%d selected", len(p.selected))
}
