package audio

// resampler performs linear-interpolation sample-rate conversion,
// carrying fractional phase across calls so a stream of chunks
// resamples identically to one long call. Linear interpolation is
// plenty for narrowband 8 kHz-class modem audio; nothing here needs a
// polyphase filter bank.
type resampler struct {
	fromRate, toRate int
	pos              float64 // fractional read position into the pending history
	prev             int16   // last sample of the previous call, for continuity
	havePrev         bool
}

func newResampler(fromRate, toRate int) *resampler {
	return &resampler{fromRate: fromRate, toRate: toRate}
}

// Process resamples in (mono, 16-bit) to the target rate. If fromRate ==
// toRate it returns in unchanged.
func (r *resampler) Process(in []int16) []int16 {
	if r.fromRate == r.toRate || len(in) == 0 {
		return in
	}

	ratio := float64(r.fromRate) / float64(r.toRate)
	ext := make([]int16, 0, len(in)+1)
	if r.havePrev {
		ext = append(ext, r.prev)
	} else if len(in) > 0 {
		ext = append(ext, in[0])
	}
	ext = append(ext, in...)

	var out []int16
	pos := r.pos
	for {
		i := int(pos)
		if i+1 >= len(ext) {
			break
		}
		frac := pos - float64(i)
		a, b := float64(ext[i]), float64(ext[i+1])
		out = append(out, int16(a+(b-a)*frac))
		pos += ratio
	}

	consumed := float64(len(ext) - 1)
	r.pos = pos - consumed
	r.prev = ext[len(ext)-1]
	r.havePrev = true
	return out
}
