package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vesper/internal/domain"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [address]",
		Short: "Show the session state for an address (name.deviceID)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			rec, ok, err := appCtx.Stores.LoadSession(addr)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("No session with %s\n", addr)
				return nil
			}
			if rec.HasCurrent() {
				st := rec.Current
				sendIndex := uint32(0)
				if st.Sender != nil {
					sendIndex = st.Sender.Index
				}
				fmt.Printf("Session with %s: send index %d, %d receiver chain(s), %d archived state(s)\n",
					addr, sendIndex, len(st.Receivers), len(rec.Archived))
			} else {
				fmt.Printf("Session with %s: no active state, %d archived\n", addr, len(rec.Archived))
			}
			return nil
		},
	}
}

// parseAddress splits "name.deviceID", using the last dot so names may
// contain dots themselves.
func parseAddress(s string) (domain.Address, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return domain.Address{}, fmt.Errorf("address must be name.deviceID, got %q", s)
	}
	device, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return domain.Address{}, fmt.Errorf("bad device id in %q: %w", s, err)
	}
	return domain.NewAddress(s[:i], uint32(device)), nil
}
