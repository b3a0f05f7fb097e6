package audio

// Convert returns samples laid out for format to. Channels are remixed first
// (mono is duplicated, stereo is averaged), then each channel is linearly
// resampled. The input is returned unchanged when the formats already match.
func Convert(samples []float32, from, to Format) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	mixed := remix(samples, from.Channels, to.Channels)
	return resample(mixed, to.Channels, from.SampleRate, to.SampleRate)
}

// ConvertClip converts clip to format to, keeping its path.
func ConvertClip(clip *Clip, to Format) *Clip {
	if clip.Format == to {
		return clip
	}
	return &Clip{
		Path:    clip.Path,
		Format:  to,
		Samples: Convert(clip.Samples, clip.Format, to),
	}
}

func remix(samples []float32, from, to int) []float32 {
	if from == to {
		return samples
	}
	frames := len(samples) / from
	out := make([]float32, frames*to)
	for f := range frames {
		in := samples[f*from : f*from+from]
		var mono float32
		for _, s := range in {
			mono += s
		}
		mono /= float32(from)
		for c := range to {
			if to == 1 || from == 1 || c >= from {
				out[f*to+c] = mono
			} else {
				out[f*to+c] = in[c]
			}
		}
	}
	return out
}

func resample(samples []float32, channels, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate < 1 || toRate < 1 {
		return samples
	}
	inFrames := len(samples) / channels
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(toRate) / int64(fromRate))
	if outFrames == 0 {
		outFrames = 1
	}
	out := make([]float32, outFrames*channels)
	step := float64(fromRate) / float64(toRate)
	for f := range outFrames {
		pos := float64(f) * step
		i := int(pos)
		frac := float32(pos - float64(i))
		j := i + 1
		if j >= inFrames {
			j = inFrames - 1
		}
		if i >= inFrames {
			i = inFrames - 1
		}
		for c := range channels {
			a := samples[i*channels+c]
			b := samples[j*channels+c]
			out[f*channels+c] = a + (b-a)*frac
		}
	}
	return out
}
