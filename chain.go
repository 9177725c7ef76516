package jsonrpc2sock

import (
	"iter"
)

func chainLen[M any](seq iter.Seq[M]) int {
	n := 0

	for range seq {
		n++
	}

	return n
}

func chainSlice[M any](n int, seq iter.Seq[M]) []M {
	out := make([]M, 0, n)

	for m := range seq {
		out = append(out, m)
	}

	return out
}
