package commands

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"vesper/internal/app"
	"vesper/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend == app.BackendFile && passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			id, err := crypto.GenerateIdentityKeyPair(rand.Reader)
			if err != nil {
				return err
			}
			registrationID, err := crypto.GenerateRegistrationID(rand.Reader)
			if err != nil {
				return err
			}
			if err := appCtx.Stores.SaveLocalIdentity(id, registrationID); err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\nRegistration ID: %d\n",
				crypto.Fingerprint(id.XPub.Slice()), registrationID)
			return nil
		},
	}
}
