// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"net"
	"strings"
)

// validateCIDRList checks trusted-proxy entries. Trust-all networks and
// unspecified addresses are refused.
func validateCIDRList(key string, entries []string) error {
	for _, raw := range entries {
		e := strings.TrimSpace(raw)
		if e == "" {
			continue
		}

		if ip, n, err := net.ParseCIDR(e); err == nil {
			ones, bits := n.Mask.Size()
			if ones == 0 {
				return fmt.Errorf("%s contains forbidden CIDR %q (trust-all is not allowed)", key, e)
			}
			if ip.IsUnspecified() && ones == bits {
				return fmt.Errorf("%s contains unspecified address %q", key, e)
			}
			continue
		}

		ip := net.ParseIP(e)
		if ip == nil {
			return fmt.Errorf("%s: invalid entry %q (must be CIDR or IP)", key, e)
		}
		if ip.IsUnspecified() {
			return fmt.Errorf("%s contains unspecified address %q", key, e)
		}
	}
	return nil
}
