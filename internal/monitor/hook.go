package monitor

import (
	"sync"

	rsmonerrors "github.com/devrev/rsmon/internal/errors"
)

// ConfigChangeHook is invoked whenever any Monitor in the process adds
// a node to its table. It is a single process-global callback, not a
// per-monitor one — a legacy choice inherited from this driver's design;
// a per-monitor callback list would be the natural extension if this
// ever needs to support more than one subscriber.
var (
	configChangeHookMu  sync.Mutex
	configChangeHook    func(*Monitor)
	configChangeHookSet bool
)

// SetConfigChangeHook registers the process-wide hook. Calling it a
// second time is a programmer error and returns a ConfigError rather
// than silently replacing the previous hook.
func SetConfigChangeHook(hook func(*Monitor)) error {
	configChangeHookMu.Lock()
	defer configChangeHookMu.Unlock()

	if configChangeHookSet {
		return rsmonerrors.NewConfigError("ConfigChangeHook already set for this process")
	}
	configChangeHook = hook
	configChangeHookSet = true
	return nil
}

// resetConfigChangeHookForTest clears the hook so tests can register
// their own without tripping the double-set guard. Not exported.
func resetConfigChangeHookForTest() {
	configChangeHookMu.Lock()
	defer configChangeHookMu.Unlock()
	configChangeHook = nil
	configChangeHookSet = false
}

func fireConfigChangeHook(mon *Monitor) {
	configChangeHookMu.Lock()
	hook := configChangeHook
	configChangeHookMu.Unlock()

	if hook != nil {
		hook(mon)
	}
}
