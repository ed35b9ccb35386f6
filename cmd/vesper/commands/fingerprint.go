package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"vesper/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := appCtx.Stores.IdentityKeyPair()
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(id.XPub.Slice()))
			return nil
		},
	}
}
