// Package service 包含了应用的业务逻辑层。
package service

import "sync"

// keyedMutex 提供按键互斥：同一键上的操作串行执行，不同键互不阻塞。
// 用于会话级（按会话 ID）与文件级（按文件名）的并发保护。
type keyedMutex struct {
	locks sync.Map // key: string, value: *sync.Mutex
}

// Lock 锁定指定键，返回对应的解锁函数。
func (m *keyedMutex) Lock(key string) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
