package proxy

import "net"

// LANIP returns the address of the interface used for outbound traffic, or
// "undefined" when there is none. The UDP dial sends no packets.
func LANIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "undefined"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "undefined"
	}
	return addr.IP.String()
}
