package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	codeAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength    = 14
	codeGroupSize = 4

	// 大于等于该值的随机字节会被丢弃，保证每个字符等概率。
	codeByteCeiling = 256 - 256%len(codeAlphabet)
)

// CodeGenerator 生成形如 XXXX-XXXX-XXXX-XX 的优惠券码。
// 随机源通过构造函数注入，生产环境使用 crypto/rand，测试可以注入固定种子的 reader。
type CodeGenerator struct {
	mu     sync.Mutex
	random io.Reader
}

// NewCodeGenerator 创建生成器，random 为 nil 时使用 crypto/rand。
func NewCodeGenerator(random io.Reader) *CodeGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &CodeGenerator{random: random}
}

// Generate 生成一个新的优惠券码。
// 生成器本身不保证全局唯一，发放流程遇到主键冲突时需要重新生成。
func (g *CodeGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(codeLength + codeLength/codeGroupSize)

	buf := make([]byte, codeLength*2)
	written := 0
	for written < codeLength {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, c := range buf {
			if int(c) >= codeByteCeiling {
				continue
			}
			b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
			written++
			if written%codeGroupSize == 0 && written != codeLength {
				b.WriteByte('-')
			}
			if written == codeLength {
				break
			}
		}
	}
	return b.String(), nil
}

// IsWellFormedCode 校验优惠券码的格式。
func IsWellFormedCode(code string) bool {
	groups := strings.Split(code, "-")
	if len(groups) != (codeLength+codeGroupSize-1)/codeGroupSize {
		return false
	}
	total := 0
	for i, g := range groups {
		last := i == len(groups)-1
		if (!last && len(g) != codeGroupSize) || len(g) == 0 || len(g) > codeGroupSize {
			return false
		}
		for j := 0; j < len(g); j++ {
			if !strings.ContainsRune(codeAlphabet, rune(g[j])) {
				return false
			}
		}
		total += len(g)
	}
	return total == codeLength
}
