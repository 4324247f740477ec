package database

// defaultCatalog is the built-in Cisco-flavoured command reference, grouped
// the way operators browse it.
func defaultCatalog() []CatalogCommand {
	return []CatalogCommand{
		// Show commands
		{Category: "show_commands", Command: "show version", Description: "Software version and device information"},
		{Category: "show_commands", Command: "show running-config", Description: "Current configuration"},
		{Category: "show_commands", Command: "show ip interface brief", Description: "IP interface summary"},
		{Category: "show_commands", Command: "show interfaces", Description: "State of all interfaces"},
		{Category: "show_commands", Command: "show ip route", Description: "Routing table"},
		{Category: "show_commands", Command: "show arp", Description: "ARP table"},
		{Category: "show_commands", Command: "show mac address-table", Description: "MAC address table"},
		{Category: "show_commands", Command: "show vlan", Description: "VLAN information"},

		// Interface configuration
		{Category: "interface_config", Command: "configure terminal", Description: "Enter global configuration mode"},
		{Category: "interface_config", Command: "interface GigabitEthernet0/0", Description: "Enter interface configuration for GigabitEthernet0/0"},
		{Category: "interface_config", Command: "ip address 192.168.1.1 255.255.255.0", Description: "Assign an IP address to the interface"},
		{Category: "interface_config", Command: "no shutdown", Description: "Enable the interface"},
		{Category: "interface_config", Command: "shutdown", Description: "Disable the interface"},
		{Category: "interface_config", Command: "description CONNECTION_TO_ROUTER", Description: "Set an interface description"},
		{Category: "interface_config", Command: "duplex full", Description: "Set full duplex"},
		{Category: "interface_config", Command: "speed 100", Description: "Set speed to 100 Mbit/s"},

		// Routing
		{Category: "routing", Command: "ip route 0.0.0.0 0.0.0.0 192.168.1.1", Description: "Add a default route"},
		{Category: "routing", Command: "router ospf 1", Description: "Configure OSPF process 1"},
		{Category: "routing", Command: "router eigrp 100", Description: "Configure EIGRP process 100"},
		{Category: "routing", Command: "network 192.168.1.0 0.0.0.255 area 0", Description: "Advertise a network in OSPF area 0"},
		{Category: "routing", Command: "redistribute connected", Description: "Redistribute connected routes"},
		{Category: "routing", Command: "show ip protocols", Description: "Active routing protocols"},

		// Security
		{Category: "security", Command: "username admin privilege 15 secret cisco123", Description: "Create a privileged admin user"},
		{Category: "security", Command: "enable secret cisco123", Description: "Set the privileged mode password"},
		{Category: "security", Command: "service password-encryption", Description: "Enable password encryption"},
		{Category: "security", Command: "access-list 1 permit 192.168.1.0 0.0.0.255", Description: "Create an ACL permitting a network"},
		{Category: "security", Command: "banner motd # Unauthorized access prohibited #", Description: "Set the login banner"},
		{Category: "security", Command: "line vty 0 4", Description: "Configure virtual terminal lines"},
		{Category: "security", Command: "transport input ssh", Description: "Allow only encrypted remote login"},

		// Diagnostics
		{Category: "diagnostics", Command: "ping 8.8.8.8", Description: "Check reachability of 8.8.8.8"},
		{Category: "diagnostics", Command: "traceroute 8.8.8.8", Description: "Trace the route to 8.8.8.8"},
		{Category: "diagnostics", Command: "show logging", Description: "System log"},
		{Category: "diagnostics", Command: "show processes cpu", Description: "CPU usage"},
		{Category: "diagnostics", Command: "show memory", Description: "Memory usage"},
		{Category: "diagnostics", Command: "debug ip packet", Description: "Enable IP packet debugging"},
		{Category: "diagnostics", Command: "undebug all", Description: "Disable all debugging"},
		{Category: "diagnostics", Command: "show tech-support", Description: "Collect technical support information"},

		// Device management
		{Category: "device_management", Command: "copy running-config startup-config", Description: "Save the configuration"},
		{Category: "device_management", Command: "erase startup-config", Description: "Erase the saved configuration"},
		{Category: "device_management", Command: "reload", Description: "Restart the device"},
		{Category: "device_management", Command: "clock set 14:30:00 15 Dec 2023", Description: "Set date and time"},
		{Category: "device_management", Command: "hostname Router1", Description: "Set the device hostname"},
		{Category: "device_management", Command: "copy tftp running-config", Description: "Load a configuration over TFTP"},
		{Category: "device_management", Command: "show flash", Description: "Flash memory contents"},
	}
}

func defaultMacros() []Macro {
	macros := []struct {
		name        string
		description string
		commands    []string
	}{
		{
			name:        "basic_info",
			description: "Collect basic device information",
			commands: []string{
				"show version",
				"show ip interface brief",
				"show running-config | include hostname",
			},
		},
		{
			name:        "interface_status",
			description: "Check the state of all interfaces",
			commands: []string{
				"show interfaces",
				"show ip interface brief",
				"show interfaces status",
			},
		},
		{
			name:        "routing_info",
			description: "Collect routing information",
			commands: []string{
				"show ip route",
				"show ip protocols",
				"show arp",
			},
		},
		{
			name:        "security_check",
			description: "Review security-related configuration",
			commands: []string{
				"show running-config | include username",
				"show running-config | include enable",
				"show running-config | include access-list",
				"show line",
			},
		},
		{
			name:        "save_config",
			description: "Save the running configuration",
			commands: []string{
				"copy running-config startup-config",
			},
		},
	}

	out := make([]Macro, 0, len(macros))
	for _, m := range macros {
		macro := Macro{Name: m.name, Description: m.description}
		if err := macro.SetCommands(m.commands); err != nil {
			// Static string slices always marshal.
			panic(err)
		}
		out = append(out, macro)
	}
	return out
}
