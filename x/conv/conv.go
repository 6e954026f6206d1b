// Package conv appends decimal text without fmt or strconv, so the same
// code formats on the MCU and the host with no allocations beyond dst.
package conv

// AppendUint appends the base-10 form of n.
func AppendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

// AppendInt appends the base-10 form of n, with a leading '-' if negative.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		dst = append(dst, '-')
		return AppendUint(dst, uint64(-(n + 1))+1)
	}
	return AppendUint(dst, uint64(n))
}

// AppendFixed appends v rounded half away from zero to decimals places
// (0..6). Magnitudes beyond int64 are clamped.
func AppendFixed(dst []byte, v float64, decimals int) []byte {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 6 {
		decimals = 6
	}
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	neg := v < 0
	if neg {
		v = -v
	}
	s := v*scale + 0.5
	const limit = float64(1 << 62)
	if s > limit || s != s {
		s = limit
	}
	u := uint64(s)
	pow := uint64(scale)
	whole, frac := u/pow, u%pow
	if neg && u != 0 {
		dst = append(dst, '-')
	}
	dst = AppendUint(dst, whole)
	if decimals == 0 {
		return dst
	}
	dst = append(dst, '.')
	for p := pow / 10; p > 0; p /= 10 {
		dst = append(dst, byte('0'+frac/p%10))
	}
	return dst
}
