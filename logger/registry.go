package logger

import (
	"sync"
)

// Components that take their logger from the registry by default.
const (
	ComponentScanner = "scanner"
	ComponentEngine  = "engine"
	ComponentServer  = "server"
)

var components = struct {
	sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register sets the logger of component, replacing any earlier one.
func Register(component string, l *Logger) {
	components.Lock()
	defer components.Unlock()
	components.loggers[component] = l
}

// Get returns the logger of component. A component nobody registered gets
// the global logger tagged with its name.
func Get(component string) *Logger {
	components.RLock()
	l, ok := components.loggers[component]
	components.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(component)
}

// registerComponents derives the built-in component loggers from the
// global logger. Init calls it so a re-Init replaces stale outputs.
func registerComponents() {
	global := GetGlobalLogger()
	components.Lock()
	defer components.Unlock()
	for _, name := range []string{ComponentScanner, ComponentEngine, ComponentServer} {
		components.loggers[name] = global.WithComponent(name)
	}
}
