package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RuntimeInstanceInfo records the lifecycle of one ExecutionHost, for
// debug/introspection endpoints. This is process-local bookkeeping, not
// part of durable state.
type RuntimeInstanceInfo struct {
	RequestID     string
	SelfAddress   Address
	OperationHash Hash
	StartedAt     time.Time
	EndedAt       time.Time
	Status        string // "running", "completed", "failed"
}

// RuntimeRegistry tracks every ExecutionHost instance currently or recently
// active, grounded on the teacher's sandbox-instance bookkeeping
// (StartSandbox/StopSandbox/ResetSandbox/SandboxStatus/ListSandboxes),
// repurposed here from tracking WASM sandboxes to tracking JS runtime
// instances.
type RuntimeRegistry struct {
	mu        sync.RWMutex
	instances map[string]*RuntimeInstanceInfo
	log       *logrus.Entry
}

func NewRuntimeRegistry() *RuntimeRegistry {
	return &RuntimeRegistry{
		instances: make(map[string]*RuntimeInstanceInfo),
		log:       logrus.WithField("component", "runtime_registry"),
	}
}

func (r *RuntimeRegistry) Start(requestID string, self Address, opHash Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[requestID] = &RuntimeInstanceInfo{
		RequestID:     requestID,
		SelfAddress:   self,
		OperationHash: opHash,
		StartedAt:     time.Now(),
		Status:        "running",
	}
	r.log.WithFields(logrus.Fields{"request_id": requestID, "self": self}).Debug("runtime instance started")
}

func (r *RuntimeRegistry) Complete(requestID string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.instances[requestID]
	if !ok {
		return
	}
	info.EndedAt = time.Now()
	if failed {
		info.Status = "failed"
	} else {
		info.Status = "completed"
	}
}

func (r *RuntimeRegistry) Status(requestID string) (RuntimeInstanceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.instances[requestID]
	if !ok {
		return RuntimeInstanceInfo{}, false
	}
	return *info, true
}

func (r *RuntimeRegistry) List() []RuntimeInstanceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RuntimeInstanceInfo, 0, len(r.instances))
	for _, info := range r.instances {
		out = append(out, *info)
	}
	return out
}

// Reset discards all tracked instances, used between devnet test runs.
func (r *RuntimeRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*RuntimeInstanceInfo)
}
