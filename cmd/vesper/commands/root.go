package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vesper/internal/app"
)

var (
	home       string
	passphrase string
	backend    string

	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:   "vesper",
		Short: "Double-ratchet messaging key management CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".vesper")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			var err error
			appCtx, err = app.NewWire(app.Config{
				Home:       home,
				Passphrase: passphrase,
				Store:      backend,
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx != nil {
				return appCtx.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.vesper)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys (file backend)")
	root.PersistentFlags().StringVar(&backend, "store", app.BackendFile, "storage backend: file or sqlite")

	root.AddCommand(initCmd(), prekeysCmd(), fingerprintCmd(), sessionsCmd())
	return root.Execute()
}
