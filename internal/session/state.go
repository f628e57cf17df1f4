package session

import (
	"sync"

	"github.com/iabetor/pivoice/internal/logger"
)

// State 表示一次合成请求所处的阶段。
type State int

const (
	// StateIdle 空闲，可以发起新请求。
	StateIdle State = iota
	// StateRequesting 请求进行中。
	StateRequesting
	// StateSuccess 请求成功，随即回到 Idle。
	StateSuccess
	// StateFailure 请求失败，随即回到 Idle。
	StateFailure
)

var stateNames = [...]string{
	"Idle",
	"Requesting",
	"Success",
	"Failure",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// SetOnChange 注册状态变化回调。回调在释放锁之后执行，可以读取状态机。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态，只有合法转换才生效：
//
//	Idle       → Requesting
//	Requesting → Success | Failure
//	Success    → Idle
//	Failure    → Idle
//
// Idle → Requesting 是唯一的入口，因此它同时充当"忙"标志。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	if !validTransition(sm.current, to) {
		from := sm.current
		sm.mu.Unlock()
		logger.Debugf("[state] 非法转换 %s → %s", from, to)
		return false
	}
	from := sm.current
	sm.current = to
	fn := sm.onChange
	sm.mu.Unlock()

	logger.Debugf("[state] %s → %s", from, to)
	if fn != nil {
		fn(from, to)
	}
	return true
}

// ForceIdle 无条件重置为 Idle，会话关闭时使用。
func (sm *StateMachine) ForceIdle() {
	sm.mu.Lock()
	from := sm.current
	sm.current = StateIdle
	fn := sm.onChange
	sm.mu.Unlock()

	if from == StateIdle {
		return
	}
	logger.Warnf("[state] 强制重置 %s → Idle", from)
	if fn != nil {
		fn(from, StateIdle)
	}
}

func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRequesting
	case StateRequesting:
		return to == StateSuccess || to == StateFailure
	case StateSuccess, StateFailure:
		return to == StateIdle
	}
	return false
}
