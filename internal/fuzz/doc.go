// Package fuzztests houses Go fuzz harnesses for both decoders. The binary
// harnesses check totality: no panic, no hang, tables that only grow and
// only point backwards, and a kernel that never panics on the result. The
// text harness checks that anything the strict decoder accepts survives a
// round trip through the encoder.
//
// Назначение: гонять произвольные байты через декодеры и ядро.
//
// Не делает: запись корпусов на диск, работу CLI.
//
// Зависимости: internal/binfmt, internal/textfmt, internal/kernel,
// internal/testkit, internal/corpus.

package fuzztests
