//go:build splitseq_debug

package splitseq

const debugging = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
