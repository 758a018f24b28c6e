package interpolate

// Wildcard keys the fallback strategy of an Object.
const Wildcard = "*"

// Object blends map payloads field by field. Fields listed in fields use
// their own strategy; other fields present in av use fields[Wildcard] when
// set and are dropped otherwise.
func Object(fields map[string]Interpolator) Interpolator {
	return Func(func(t, at float64, av any, bt float64, bv any) any {
		am, _ := av.(map[string]any)
		bm, _ := bv.(map[string]any)
		out := make(map[string]any, len(fields))
		for k, i := range fields {
			if k == Wildcard {
				continue
			}
			out[k] = i.Interpolate(t, at, am[k], bt, bm[k])
		}
		if wild, ok := fields[Wildcard]; ok {
			for k, a := range am {
				if _, named := fields[k]; named {
					continue
				}
				out[k] = wild.Interpolate(t, at, a, bt, bm[k])
			}
		}
		return out
	})
}

// Slice blends slice payloads element by element with elem. The result has
// the length of av.
func Slice(elem Interpolator) Interpolator {
	return Func(func(t, at float64, av any, bt float64, bv any) any {
		as, _ := av.([]any)
		bs, _ := bv.([]any)
		out := make([]any, len(as))
		for i, a := range as {
			var b any
			if i < len(bs) {
				b = bs[i]
			}
			out[i] = elem.Interpolate(t, at, a, bt, b)
		}
		return out
	})
}
