// Package position computes and diffs item (column, row) coordinates.
// All functions are pure over the column slice they are given; the store is
// responsible for calling Recalculate before any snapshot or diff is taken.
package position

import "github.com/and161185/retro-board/internal/model"

// Recalculate walks columns in array order and sets every item's
// ColumnIndex/RowIndex to its structural position.
func Recalculate(columns []*model.Column) {
	for columnIdx, column := range columns {
		for rowIdx, item := range column.Items {
			item.ColumnIndex = columnIdx
			item.RowIndex = rowIdx
		}
	}
}

// Snapshot records {columnID, rowIndex} per item id.
func Snapshot(columns []*model.Column) model.PositionMap {
	positions := make(model.PositionMap)
	for _, column := range columns {
		for _, item := range column.Items {
			positions[item.ID] = model.Position{ColumnID: column.ID, RowIndex: item.RowIndex}
		}
	}
	return positions
}

// Diff reports every item present in both the columns and the previous
// snapshot whose (columnID, rowIndex) changed. Items absent from the snapshot
// (new) or from the columns (deleted) are not position changes; creation and
// deletion have their own flows.
func Diff(columns []*model.Column, previous model.PositionMap) []model.PositionChange {
	var changes []model.PositionChange
	for _, column := range columns {
		for _, item := range column.Items {
			prev, ok := previous[item.ID]
			if !ok {
				continue
			}
			if prev.ColumnID != column.ID || prev.RowIndex != item.RowIndex {
				changes = append(changes, model.PositionChange{
					ItemID:      item.ID,
					OldColumnID: prev.ColumnID,
					OldRowIndex: prev.RowIndex,
					NewColumnID: column.ID,
					NewRowIndex: item.RowIndex,
				})
			}
		}
	}
	return changes
}
