package domain

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeGenerator_Format(t *testing.T) {
	g := NewCodeGenerator(nil)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Len(t, code, 17)
		assert.True(t, IsWellFormedCode(code), code)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 200)
}

func TestCodeGenerator_SeededIsDeterministic(t *testing.T) {
	a := NewCodeGenerator(rand.New(rand.NewSource(7)))
	b := NewCodeGenerator(rand.New(rand.NewSource(7)))
	for i := 0; i < 5; i++ {
		ca, err := a.Generate()
		require.NoError(t, err)
		cb, err := b.Generate()
		require.NoError(t, err)
		assert.Equal(t, ca, cb)
	}
}

func TestCodeGenerator_SkipsBiasedBytes(t *testing.T) {
	// 248 以上的字节被丢弃，后续的 0 映射为 'a'
	src := append(bytes.Repeat([]byte{255}, 28), make([]byte, 28)...)
	code, err := NewCodeGenerator(bytes.NewReader(src)).Generate()
	require.NoError(t, err)
	assert.Equal(t, "aaaa-aaaa-aaaa-aa", code)
}

func TestCodeGenerator_ShortRead(t *testing.T) {
	_, err := NewCodeGenerator(bytes.NewReader([]byte{1, 2, 3})).Generate()
	assert.Error(t, err)
}

func TestIsWellFormedCode(t *testing.T) {
	for code, want := range map[string]bool{
		"abcd-EFGH-1234-z9":  true,
		"abcd-EFGH-1234-z":   false,
		"abcd-EFGH-1234-z99": false,
		"abcdEFGH1234z9":     false,
		"abcd-EF_H-1234-z9":  false,
		"":                   false,
	} {
		assert.Equal(t, want, IsWellFormedCode(code), code)
	}
}
