package port

import "context"

// Locker 是集群级互斥锁的出站端口。
type Locker interface {
	// Acquire 获取 resource 上的锁，返回的 release 用于释放。
	Acquire(ctx context.Context, resource string) (release func() error, err error)
}

// LocalLocker 用于单实例部署，不做任何跨进程互斥。
type LocalLocker struct{}

func (LocalLocker) Acquire(context.Context, string) (func() error, error) {
	return func() error { return nil }, nil
}
