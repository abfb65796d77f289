package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

// VulkanLockPool serializes access to queues. Submission and presentation must
// be externally synchronized when they target the same queue family.
type VulkanLockPool struct {
	mu sync.Mutex // Protects access to the queueMutexes map

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) queueLock(index uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	// Create a new mutex if it doesn't exist
	l, exists := vs.queueMutexes[index]
	if !exists {
		l = &sync.Mutex{}
		vs.queueMutexes[index] = l
	}
	return l
}

// QueueCall runs fn while holding the lock of the queue family and returns
// its result.
func (vs *VulkanLockPool) QueueCall(queueFamilyIndex uint32, fn func() vk.Result) vk.Result {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}
