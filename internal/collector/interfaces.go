package collector

import (
	"fmt"
	"net"

	"netwatch/internal/models"
)

// ListInterfaces reports the host's interfaces with their first IPv4 address.
func ListInterfaces() ([]models.NetworkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]models.NetworkInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := models.NetworkInterface{
			Name: iface.Name,
			MAC:  iface.HardwareAddr.String(),
			IsUp: iface.Flags&net.FlagUp != 0,
		}
		addrs, err := iface.Addrs()
		if err == nil {
			ni.IP = firstIPv4(addrs)
		}
		out = append(out, ni)
	}
	return out, nil
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
