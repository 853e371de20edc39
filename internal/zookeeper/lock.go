// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点

	// 等待前驱节点释放的超时，防止死等
	lockWaitTimeout = 30 * time.Second
)

// DistributedLock 是基于临时顺序节点的 ZooKeeper 分布式锁。
// 用于把对同一资源（如一条折扣策略）的并发变更串行化。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /distributed_locks/discount-policy-42
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例。
func NewDistributedLock(conn *Conn, resourceID string) *DistributedLock {
	// 确保根节点存在。生产环境中通常由初始化脚本完成。
	ensureNode(conn, lockRoot)

	lockPath := lockRoot + "/" + resourceID
	ensureNode(conn, lockPath)

	return &DistributedLock{
		conn: conn,
		path: lockPath,
	}
}

func ensureNode(conn *Conn, path string) {
	if exists, _, err := conn.Exists(path); err == nil && exists {
		return
	}
	if _, err := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		panic(fmt.Sprintf("Failed to create lock node %s: %v", path, err))
	}
}

// Lock 尝试获取锁，获取不到则阻塞等待前驱节点释放。
func (l *DistributedLock) Lock() error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 获取锁路径下的所有子节点并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点则获取锁成功
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		myIndex := -1
		for i, child := range children {
			if child == myNodeName {
				myIndex = i
				break
			}
		}
		if myIndex == 0 {
			return nil
		}
		if myIndex < 0 {
			return errors.New("own lock node disappeared, session may have expired")
		}

		// 4. 只监听前一个节点，避免惊群
		prevNodePath := l.path + "/" + children[myIndex-1]
		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前驱节点刚好被删除，重试循环
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		// 5. 阻塞等待前驱节点删除事件
		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(lockWaitTimeout):
			return errors.New("timeout waiting for lock")
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
