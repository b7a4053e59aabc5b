package present

// FitDestination scales a bw x bh buffer into a w x h window keeping its
// aspect ratio. The buffer spans the full window width when it is
// proportionally at least as wide as the window, otherwise the full height.
// ok is false until all four sizes are positive.
func FitDestination(w, h, bw, bh int32) (vw, vh int32, ok bool) {
	if w <= 0 || h <= 0 || bw <= 0 || bh <= 0 {
		return 0, 0, false
	}
	W, H, BW, BH := int64(w), int64(h), int64(bw), int64(bh)
	if W*BH <= H*BW {
		vw, vh = w, int32(W*BH/BW)
	} else {
		vw, vh = int32(H*BW/BH), h
	}
	// wp_viewport rejects empty destinations.
	return max(vw, 1), max(vh, 1), true
}
