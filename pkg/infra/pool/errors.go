package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolOverload 池已满且配置为非阻塞
	ErrPoolOverload = errors.New("worker pool is overloaded")
)
