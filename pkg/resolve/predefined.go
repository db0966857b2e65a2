package resolve

// Predefined describes a built-in application.
type Predefined struct {
	Protocol        string
	DestinationPort string
}

// PredefinedApplications lists the junos-* applications every device ships
// with. Policies may reference them without an applications stanza.
var PredefinedApplications = map[string]Predefined{
	// --- Basic services ---
	"junos-ftp":    {"tcp", "21"},
	"junos-ssh":    {"tcp", "22"},
	"junos-telnet": {"tcp", "23"},
	"junos-smtp":   {"tcp", "25"},
	"junos-smtps":  {"tcp", "465"},
	"junos-http":   {"tcp", "80"},
	"junos-https":  {"tcp", "443"},
	"junos-rtsp":   {"tcp", "554"},

	// --- DNS ---
	"junos-dns-udp": {"udp", "53"},
	"junos-dns-tcp": {"tcp", "53"},

	// --- Mail ---
	"junos-pop3":  {"tcp", "110"},
	"junos-imap":  {"tcp", "143"},
	"junos-imaps": {"tcp", "993"},

	// --- DHCP & Boot ---
	"junos-dhcp-client": {"udp", "68"},
	"junos-dhcp-server": {"udp", "67"},
	"junos-dhcp-relay":  {"udp", "67"},
	"junos-tftp":        {"udp", "69"},

	// --- Network management ---
	"junos-ntp":        {"udp", "123"},
	"junos-snmp":       {"udp", "161"},
	"junos-syslog":     {"udp", "514"},
	"junos-traceroute": {"udp", "33435-33535"},
	"junos-ping":       {"icmp", ""},
	"junos-icmp-all":   {"icmp", ""},
	"junos-icmp-ping":  {"icmp", ""},
	"junos-icmp6-all":  {"icmp6", ""},

	// --- Routing ---
	"junos-bgp":  {"tcp", "179"},
	"junos-rip":  {"udp", "520"},
	"junos-ospf": {"89", ""},

	// --- Directory & authentication ---
	"junos-ldap":    {"tcp", "389"},
	"junos-tacacs":  {"tcp", "49"},
	"junos-radius":  {"udp", "1812"},
	"junos-radacct": {"udp", "1813"},

	// --- VPN & tunneling ---
	"junos-ike":         {"udp", "500"},
	"junos-ike-nat":     {"udp", "4500"},
	"junos-ipsec-nat-t": {"udp", "4500"},
	"junos-l2tp":        {"udp", "1701"},
	"junos-gre":         {"gre", ""},

	// --- Windows/SMB ---
	"junos-smb":             {"tcp", "445"},
	"junos-netbios-session": {"tcp", "139"},
	"junos-ms-sql":          {"tcp", "1433"},
	"junos-ms-rpc-tcp":      {"tcp", "135"},

	// --- Databases & misc ---
	"junos-mysql":    {"tcp", "3306"},
	"junos-postgres": {"tcp", "5432"},
	"junos-vnc":      {"tcp", "5800"},
	"junos-sip":      {"udp", "5060"},
	"junos-http-ext": {"tcp", "7001"},
}
