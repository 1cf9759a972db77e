package content

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"shelfward/internal/services"
)

// Credentials is the opaque device identity exported during registration.
// Only loading is supported here; registration itself is out of scope.
type Credentials struct {
	DeviceType   string `json:"device_type"`
	DeviceSerial string `json:"device_serial"`
	CustomerID   string `json:"customer_id"`
	AccessToken  string `json:"access_token"`
	Marketplace  string `json:"marketplace,omitempty"`
	AccountName  string `json:"account_name,omitempty"`
}

// LoadCredentials reads and validates an account credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "content", "load credentials",
			fmt.Sprintf("read %s", path), err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "content", "load credentials",
			fmt.Sprintf("parse %s", path), err)
	}
	for field, value := range map[string]string{
		"device_type":   creds.DeviceType,
		"device_serial": creds.DeviceSerial,
		"customer_id":   creds.CustomerID,
		"access_token":  creds.AccessToken,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "content", "load credentials",
				fmt.Sprintf("%s missing %s", path, field), nil)
		}
	}
	return &creds, nil
}
