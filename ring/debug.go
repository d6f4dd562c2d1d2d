//go:build splitseq_debug

package ring

const debugging = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
