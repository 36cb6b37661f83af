// Package grid maps linear framebuffer indices to screen coordinates.
package grid

// GetGridCoords returns the column and row of index in a row-major grid
// cols wide.
func GetGridCoords(index int, cols int) (x int, y int) {
	return index % cols, index / cols
}

// GetIndex is the inverse of GetGridCoords. Coordinates wrap on both axes.
func GetIndex(x, y, cols, rows int) int {
	x = ((x % cols) + cols) % cols
	y = ((y % rows) + rows) % rows
	return y*cols + x
}

// HalfBlockRows reports how many terminal rows a grid of rows pixel rows
// needs when two pixel rows share one character cell.
func HalfBlockRows(rows int) int {
	return (rows + 1) / 2
}
