// Package topology computes the deterministic layered-broadcast
// ("avalanche") partitioning of a sorted peer list. Both functions are
// pure: given the same inputs they always produce the same output, with
// no dependency on any live gossip state.
package topology

// Locality describes where a single node index sits in the layered
// topology: which layer, the bounds of its neighborhood within that
// layer, and which indices in the next layer it should forward to.
type Locality struct {
	NeighborBounds   [2]int
	LayerIx          int
	LayerBounds      [2]int
	ChildLayerBounds *[2]int
	ChildLayerPeers  []int
}

// DescribeDataPlane partitions nodes nodes into layers of a
// fanout-at-the-root, hood_size-wide-neighborhoods broadcast tree.
//
//   - nodes == 0: no layers.
//   - nodes <= fanout: a single layer holding everyone.
//   - otherwise: the first layer (layer 0) takes the first fanout nodes;
//     each subsequent layer holds hood_size * (fanout/2) nodes, and if
//     grow is set the neighborhood count squares every layer instead of
//     staying fixed.
//
// Returns the number of layers and the cumulative layer boundaries. For
// nodes > fanout, layerIndices holds the start of every layer followed
// by the end of the last one (len(layerIndices) == numLayers+1). The
// small cases return (0, []) and (1, [0]).
func DescribeDataPlane(nodes, fanout, hoodSize int, grow bool) (int, []int) {
	if nodes == 0 {
		return 0, []int{}
	}

	layerIndices := []int{0}
	if nodes <= fanout {
		return 1, layerIndices
	}

	remaining := nodes - fanout
	layerIndices = append(layerIndices, fanout)
	numLayers := 2
	numNeighborhoods := fanout / 2
	layerCapacity := hoodSize * numNeighborhoods

	for remaining > 0 {
		end := layerIndices[len(layerIndices)-1]
		if remaining > layerCapacity {
			numLayers++
			remaining -= layerCapacity
			layerIndices = append(layerIndices, layerCapacity+end)
			if grow {
				numNeighborhoods *= numNeighborhoods
				layerCapacity = hoodSize * numNeighborhoods
			}
		} else {
			layerIndices = append(layerIndices, layerCapacity+end)
			break
		}
	}

	return numLayers, layerIndices
}

// Localize finds the layer containing selectIndex and computes that
// index's neighborhood bounds and the set of child-layer peer indices
// it should forward to.
func Localize(layerIndices []int, hoodSize int, selectIndex int) Locality {
	end := len(layerIndices) - 1
	for curr := 0; curr <= end; curr++ {
		next := curr + 1
		if next > end {
			next = end
		}
		value := layerIndices[curr]
		localized := selectIndex >= value && selectIndex < layerIndices[next]
		if !localized {
			continue
		}

		var loc Locality
		switch {
		case curr == 0:
			loc.LayerIx = 0
			loc.LayerBounds = [2]int{0, hoodSize}
			loc.NeighborBounds = loc.LayerBounds
			if next != end {
				bounds := [2]int{layerIndices[next], layerIndices[next+1]}
				loc.ChildLayerBounds = &bounds
				loc.ChildLayerPeers = lowerLayerPeers(selectIndex, bounds[0], bounds[1], hoodSize)
			}
		case curr == end:
			loc.LayerIx = end
			loc.LayerBounds = [2]int{end - hoodSize, end}
			loc.NeighborBounds = loc.LayerBounds
		default:
			hoodIx := (selectIndex - value) / hoodSize
			loc.LayerIx = curr
			loc.LayerBounds = [2]int{value, layerIndices[next]}
			loc.NeighborBounds = [2]int{
				hoodIx*hoodSize + value,
				(hoodIx+1)*hoodSize + value,
			}
			if next != end {
				bounds := [2]int{layerIndices[next], layerIndices[next+1]}
				loc.ChildLayerBounds = &bounds
				loc.ChildLayerPeers = lowerLayerPeers(selectIndex, bounds[0], bounds[1], hoodSize)
			}
		}
		return loc
	}
	return Locality{}
}

// lowerLayerPeers returns the indices in [start, end) that index should
// forward to in the next layer: one index per hoodSize-wide block,
// offset by index % hoodSize, so adjacent indices in the same
// neighborhood pick disjoint children.
func lowerLayerPeers(index, start, end, hoodSize int) []int {
	var peers []int
	offset := index % hoodSize
	for x := start; x < end; x += hoodSize {
		peers = append(peers, x+offset)
	}
	return peers
}
