package port

import "time"

// Clock 是时间源抽象。有效期判断一律通过注入的时钟进行，
// 不在服务内部直接取墙钟，保证测试下行为可复现。
type Clock interface {
	Now() time.Time
}

// SystemClock 是走系统时间的默认实现。
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
