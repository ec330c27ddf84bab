package ssim

// MaxWindow is the largest comparison window considered.
const MaxWindow = 7

// MinWindow is the smallest window for which the index is computed.
const MinWindow = 3

// ResolveWindow picks the comparison window as min(MaxWindow, blurSize,
// min(rows, cols)), rounded down to odd. The result may fall below
// MinWindow; callers must check.
func ResolveWindow(blurSize, rows, cols int) int {
	w := min(MaxWindow, blurSize, min(rows, cols))
	if w%2 == 0 {
		w--
	}
	return max(w, 0)
}
