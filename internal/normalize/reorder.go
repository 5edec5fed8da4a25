package normalize

import (
	"fmt"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
)

// ReorderColumns maps a payload's column-id order onto the locally-held
// column objects. Field values from the payload are deliberately ignored:
// local objects may carry edits still in flight, and only the order is
// authoritative here. A payload of the wrong length or referencing an unknown
// id rejects the whole reorder.
func ReorderColumns(current []*model.Column, payload any) ([]*model.Column, error) {
	raw, ok := payload.([]any)
	if !ok || len(raw) != len(current) {
		return nil, fmt.Errorf("%w: columns reorder payload", errs.ErrInvalidPayload)
	}

	byID := make(map[int64]*model.Column, len(current))
	for _, column := range current {
		byID[column.ID] = column
	}

	reordered := make([]*model.Column, 0, len(raw))
	for _, entry := range raw {
		m, _ := AsMap(entry)
		id, ok := PositiveInt(m["id"])
		if !ok {
			return nil, fmt.Errorf("%w: columns reorder payload", errs.ErrInvalidPayload)
		}
		column, known := byID[id]
		if !known {
			return nil, fmt.Errorf("%w: unknown column %d in reorder payload", errs.ErrInvalidPayload, id)
		}
		reordered = append(reordered, column)
	}
	return reordered, nil
}
