// Package solver: the watch system. Constraints subscribe to the variables
// they care about; the engine replays each narrowing against the variable's
// watch list, firing the sinks whose condition matches.
package solver

// WatchType selects the narrowing condition under which a watcher fires.
type WatchType uint8

const (
	// WatchAnyChange fires on every narrowing of the variable.
	WatchAnyChange WatchType = iota
	// WatchSolved fires when the value set's cardinality drops to one.
	WatchSolved
	// WatchLostValues fires when the watched mask and the value set no
	// longer intersect.
	WatchLostValues
	// WatchBoundsChange fires when the minimum or maximum set bit changes.
	WatchBoundsChange
)

// WatcherHandle identifies an installed watcher for removal or temporary
// disabling. Handles are unique per database.
type WatcherHandle int

// InvalidWatcherHandle is the zero sentinel for WatcherHandle.
const InvalidWatcherHandle WatcherHandle = 0

type watcher struct {
	handle   WatcherHandle
	typ      WatchType
	mask     ValueSet // only for WatchLostValues
	sink     Constraint
	disabled bool
}

// fires reports whether the watcher's condition holds for a narrowing from
// prev to cur.
func (w *watcher) fires(prev, cur ValueSet) bool {
	if w.disabled {
		return false
	}
	switch w.typ {
	case WatchAnyChange:
		return true
	case WatchSolved:
		return cur.IsSingleton() && !prev.IsSingleton()
	case WatchLostValues:
		return prev.AnyCommon(w.mask) && !cur.AnyCommon(w.mask)
	case WatchBoundsChange:
		return prev.FirstSet() != cur.FirstSet() || prev.LastSet() != cur.LastSet()
	default:
		return false
	}
}

// AddWatch installs a watcher of the given type on a variable. Watchers
// fire in installation order.
func (db *VariableDatabase) AddWatch(v VarID, typ WatchType, sink Constraint) WatcherHandle {
	assertf(typ != WatchLostValues, "WatchLostValues requires AddValueWatch")
	db.nextHandle++
	db.watchLists[v] = append(db.watchLists[v], watcher{handle: db.nextHandle, typ: typ, sink: sink})
	return db.nextHandle
}

// AddValueWatch installs a WatchLostValues watcher that fires when the
// variable can no longer take any value in mask.
func (db *VariableDatabase) AddValueWatch(v VarID, mask ValueSet, sink Constraint) WatcherHandle {
	db.nextHandle++
	db.watchLists[v] = append(db.watchLists[v], watcher{handle: db.nextHandle, typ: WatchLostValues, mask: mask, sink: sink})
	return db.nextHandle
}

// RemoveWatch uninstalls the watcher with the given handle from a variable.
func (db *VariableDatabase) RemoveWatch(v VarID, handle WatcherHandle) {
	list := db.watchLists[v]
	for i := range list {
		if list[i].handle == handle {
			db.watchLists[v] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// setWatchDisabled flips the disabled flag on a watcher. Used by the engine
// for disable-until-backtrack bookkeeping.
func (db *VariableDatabase) setWatchDisabled(v VarID, handle WatcherHandle, disabled bool) {
	list := db.watchLists[v]
	for i := range list {
		if list[i].handle == handle {
			list[i].disabled = disabled
			return
		}
	}
}
