//go:build !splitseq_debug

package splitseq

const debugging = false

func assert(bool, string) {}
