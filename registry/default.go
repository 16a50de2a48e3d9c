package registry

import "github.com/kbukum/streamkit/module"

// Default is the process-wide registry built-in stages register into.
var Default = New()

// Register adds a class to Default.
func Register(name, description string, ctor Constructor) bool {
	return Default.Register(ClassInfo{Name: name, Description: description, Constructor: ctor})
}

// CreateObject creates an instance from Default.
func CreateObject(name string) module.Module {
	return Default.CreateObject(name)
}

// Require checks names against Default.
func Require(names ...string) error {
	return Default.Require(names...)
}

// List returns the classes registered in Default.
func List() []string {
	return Default.List()
}
