package app

import (
	groupsvc "vesper/internal/services/group"
	prekeysvc "vesper/internal/services/prekey"
	sealedsvc "vesper/internal/services/sealed"
	sessionsvc "vesper/internal/services/session"
)

// App bundles the high-level services for the CLI.
type App struct {
	PreKeys  *prekeysvc.Service
	Sessions *sessionsvc.Service
	Groups   *groupsvc.Service
	Sealed   *sealedsvc.Service

	Stores Stores
	Close  func() error
}
