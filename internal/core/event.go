package core

import "time"

// ReloadEvent announces that the template environment was rebuilt.
type ReloadEvent struct {
	// Path is the file whose change triggered the rebuild.
	Path string
	At   time.Time
}
