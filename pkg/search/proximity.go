package search

// Physical key adjacency for a QWERTY layout. A typed character is allowed
// to stand in for any of its neighbors at a substitution cost.
var qwertyRows = []string{
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
}

var proximityMap = buildProximityMap(qwertyRows)

func buildProximityMap(rows []string) map[rune][]rune {
	m := make(map[rune][]rune)
	for ri, row := range rows {
		for ci, r := range row {
			var near []rune
			add := func(rowIdx, colIdx int) {
				if rowIdx < 0 || rowIdx >= len(rows) {
					return
				}
				line := []rune(rows[rowIdx])
				if colIdx < 0 || colIdx >= len(line) {
					return
				}
				near = append(near, line[colIdx])
			}
			add(ri, ci-1)
			add(ri, ci+1)
			// adjacent rows are offset by roughly half a key
			add(ri-1, ci)
			add(ri-1, ci+1)
			add(ri+1, ci-1)
			add(ri+1, ci)
			m[r] = near
		}
	}
	return m
}

// NeighborsOf returns the adjacent keys of r, or nil for characters that are
// not on the layout.
func NeighborsOf(r rune) []rune {
	return proximityMap[r]
}
