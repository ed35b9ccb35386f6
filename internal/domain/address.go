package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Address identifies a remote endpoint as a (name, device id) pair. It is
// a pure lookup key: stores use it to index sessions, identities and
// sender keys.
type Address struct {
	Name     string
	DeviceID uint32
}

// NewAddress returns an Address for the given name and device id.
func NewAddress(name string, deviceID uint32) Address {
	return Address{Name: name, DeviceID: deviceID}
}

// String renders the address as "name.deviceID", the form used as a map
// and database key.
func (a Address) String() string {
	return fmt.Sprintf("%s.%d", a.Name, a.DeviceID)
}

// DistributionID identifies one sender-key distribution within a group.
type DistributionID = uuid.UUID
