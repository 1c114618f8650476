package resample

// channelMixMatrix returns the [outCh][inCh] weight table converting from
// inChannels to outChannels (spec §4.10's fixed down/up-mix matrices for
// 1/2/4/6-channel layouts). Layouts outside that table fall back to
// positional copy with zero-fill.
func channelMixMatrix(inChannels, outChannels int) [][]float64 {
	if m := knownMix(inChannels, outChannels); m != nil {
		return m
	}
	return positionalMix(inChannels, outChannels)
}

// knownMix covers the combinations spec.md names explicitly: mono,
// stereo, quad, and 5.1 ("1↔2↔4↔6").
func knownMix(in, out int) [][]float64 {
	switch {
	case in == 1 && out == 1:
		return identity(1)
	case in == 2 && out == 2:
		return identity(2)
	case in == 4 && out == 4:
		return identity(4)
	case in == 6 && out == 6:
		return identity(6)

	case in == 1 && out == 2: // mono -> stereo: duplicate to both channels
		return [][]float64{{1}, {1}}
	case in == 2 && out == 1: // stereo -> mono: average L/R
		return [][]float64{{0.5, 0.5}}

	case in == 1 && out == 4: // mono -> quad: front channels only
		return [][]float64{{1}, {1}, {0}, {0}}
	case in == 4 && out == 1: // quad -> mono: average all four
		return [][]float64{{0.25, 0.25, 0.25, 0.25}}

	case in == 2 && out == 4: // stereo -> quad: duplicate front to rear
		return [][]float64{{1, 0}, {0, 1}, {1, 0}, {0, 1}}
	case in == 4 && out == 2: // quad -> stereo: sum front+rear per side
		return [][]float64{{1, 0, 1, 0}, {0, 1, 0, 1}}

	case in == 1 && out == 6: // mono -> 5.1: center channel only (index 2: L,R,C,LFE,Ls,Rs)
		return [][]float64{{0}, {0}, {1}, {0}, {0}, {0}}
	case in == 6 && out == 1: // 5.1 -> mono: sum L/R/C, ignore LFE/surrounds
		return [][]float64{{1.0 / 3, 1.0 / 3, 1.0 / 3, 0, 0, 0}}

	case in == 2 && out == 6: // stereo -> 5.1: front L/R only
		return [][]float64{{1, 0}, {0, 1}, {0, 0}, {0, 0}, {0, 0}, {0, 0}}
	case in == 6 && out == 2: // 5.1 -> stereo: standard downmix (center -3dB, surrounds -3dB)
		const c = 0.7071067811865476 // -3dB
		return [][]float64{
			{1, 0, c, 0, c, 0},
			{0, 1, c, 0, 0, c},
		}

	case in == 4 && out == 6: // quad -> 5.1: front pair to L/R, rear pair to Ls/Rs
		return [][]float64{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
		}
	case in == 6 && out == 4: // 5.1 -> quad: fold center/LFE into front L/R
		const c = 0.7071067811865476
		return [][]float64{
			{1, 0, c, 0, 0, 0},
			{0, 1, c, 0, 0, 0},
			{0, 0, 0, 0, 1, 0},
			{0, 0, 0, 0, 0, 1},
		}
	}
	return nil
}

func identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// positionalMix copies channel i of the input to channel i of the output,
// zero-filling any output channels beyond the input's count and dropping
// any input channels beyond the output's count.
func positionalMix(in, out int) [][]float64 {
	m := make([][]float64, out)
	for o := range m {
		m[o] = make([]float64, in)
		if o < in {
			m[o][o] = 1
		}
	}
	return m
}
