package domain

import "math"

// DefaultFillDistance is the search radius, in cells, used by FillGaps.
const DefaultFillDistance = 100

var fillDirections = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
}

// FillGaps interpolates nodata cells from the nearest valid cell along each
// of eight directions within maxDist cells, weighting by inverse squared
// distance. Only cells valid before the call contribute. Cells with no valid
// neighbour stay nodata. It returns the number of cells filled.
func FillGaps(g *Grid, maxDist int) int {
	if maxDist <= 0 {
		return 0
	}
	valid := make([]bool, len(g.Data))
	for i, v := range g.Data {
		valid[i] = !g.IsNoData(v)
	}

	type fill struct {
		idx int
		v   float64
	}
	var fills []fill
	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			idx := g.Index(row, col)
			if valid[idx] {
				continue
			}
			var num, den float64
			for _, d := range fillDirections {
				for step := 1; step <= maxDist; step++ {
					r, c := row+d[0]*step, col+d[1]*step
					if r < 0 || r >= g.NRows || c < 0 || c >= g.NCols {
						break
					}
					j := g.Index(r, c)
					if !valid[j] {
						continue
					}
					dist := math.Hypot(float64(d[0]*step), float64(d[1]*step))
					w := 1 / (dist * dist)
					num += w * g.Data[j]
					den += w
					break
				}
			}
			if den > 0 {
				fills = append(fills, fill{idx, num / den})
			}
		}
	}
	for _, f := range fills {
		g.Data[f.idx] = f.v
	}
	return len(fills)
}
