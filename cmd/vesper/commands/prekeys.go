package commands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// bundleJSON is the printable form of a prekey bundle. Key material is
// base64; ids are plain numbers.
type bundleJSON struct {
	RegistrationID        uint32  `json:"registration_id"`
	DeviceID              uint32  `json:"device_id"`
	IdentityKey           string  `json:"identity_key"`
	SigningKey            string  `json:"signing_key"`
	SignedPreKeyID        uint32  `json:"signed_prekey_id"`
	SignedPreKey          string  `json:"signed_prekey"`
	SignedPreKeySignature string  `json:"signed_prekey_signature"`
	PreKeyID              *uint32 `json:"prekey_id,omitempty"`
	PreKey                *string `json:"prekey,omitempty"`
}

func prekeysCmd() *cobra.Command {
	var (
		start    uint32
		count    int
		signedID uint32
		deviceID uint32
	)
	cmd := &cobra.Command{
		Use:   "prekeys",
		Short: "Generate a prekey batch and print the publishable bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := appCtx.PreKeys.GeneratePreKeys(start, count)
			if err != nil {
				return err
			}
			if _, err := appCtx.PreKeys.GenerateSignedPreKey(signedID, time.Now().UnixMilli()); err != nil {
				return err
			}

			var preKeyID *uint32
			if len(records) > 0 {
				id := records[0].ID
				preKeyID = &id
			}
			bundle, err := appCtx.PreKeys.MakeBundle(deviceID, signedID, preKeyID)
			if err != nil {
				return err
			}

			out := bundleJSON{
				RegistrationID:        bundle.RegistrationID,
				DeviceID:              bundle.DeviceID,
				IdentityKey:           base64.StdEncoding.EncodeToString(bundle.IdentityKey.Slice()),
				SigningKey:            base64.StdEncoding.EncodeToString(bundle.SigningKey.Slice()),
				SignedPreKeyID:        bundle.SignedPreKeyID,
				SignedPreKey:          base64.StdEncoding.EncodeToString(bundle.SignedPreKey.Slice()),
				SignedPreKeySignature: base64.StdEncoding.EncodeToString(bundle.SignedPreKeySignature),
			}
			if bundle.PreKeyID != nil && bundle.PreKey != nil {
				out.PreKeyID = bundle.PreKeyID
				pk := base64.StdEncoding.EncodeToString(bundle.PreKey.Slice())
				out.PreKey = &pk
			}

			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d one-time prekeys (ids %d..%d)\n%s\n",
				len(records), start, start+uint32(count)-1, b)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&start, "start", 1, "first one-time prekey id")
	cmd.Flags().IntVar(&count, "count", 10, "number of one-time prekeys")
	cmd.Flags().Uint32Var(&signedID, "signed-id", 1, "signed prekey id")
	cmd.Flags().Uint32Var(&deviceID, "device", 1, "device id for the bundle")
	return cmd
}
