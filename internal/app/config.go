package app

// Backend names accepted by Config.Store.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string // config directory, e.g. $HOME/.vesper
	Passphrase string // protects the local identity in the file backend
	Store      string // BackendFile or BackendSQLite
}
