/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/allbin/labctl"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports and the rig devices using them",
	Long: `List the serial ports on the system.

USB adapters (ttyUSB*), CDC/ACM devices (ttyACM*), on-board UARTs (ttyS*,
ttyAMA*) and other platform serial devices are included; virtual and
pseudo terminals are not.

With --table each port is shown with its type and the rig device that
labctl.yaml assigns to it. With --stable the /dev/serial/by-id and by-path
aliases are printed instead; use those in labctl.yaml since ttyACM numbers
follow enumeration order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		stable, _ := cmd.Flags().GetBool("stable")

		if stable {
			links, err := labctl.ListStableLinks()
			if err != nil {
				return fmt.Errorf("list stable links: %w", err)
			}
			if len(links) == 0 {
				fmt.Println("No stable serial links found")
				return nil
			}
			for _, l := range links {
				fmt.Printf("%s %s %s\n", l.Link, faintStyle.Render("->"), infoStyle.Render(l.Target))
			}
			return nil
		}

		ports, err := labctl.ListPorts()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}

		filteredPorts := filterPorts(ports, filterType)
		if len(filteredPorts) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			renderTable(filteredPorts, rigAssignments())
		} else {
			renderSimple(filteredPorts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Show type and rig assignment of each port")
	listCmd.Flags().Bool("stable", false, "Show /dev/serial/by-id and by-path aliases")
}

// rigAssignments maps resolved device paths to the rig device configured on
// them. A missing or invalid config yields an empty map.
func rigAssignments() map[string]string {
	assigned := make(map[string]string)
	cfg, err := loadConfig()
	if err != nil {
		log.Debug().Err(err).Msg("no rig config, skipping assignments")
		return assigned
	}

	add := func(port, device string) {
		if port == "" {
			return
		}
		if info, err := labctl.GetPortInfo(port); err == nil {
			port = info.Path
		}
		assigned[port] = device
	}
	for _, s := range cfg.Stages {
		add(s.Port, "stage "+s.Name)
	}
	if cfg.Trigger != nil {
		add(cfg.Trigger.Port, "trigger")
	}
	for _, w := range cfg.Waveforms {
		add(w.Port, fmt.Sprintf("waveform %d (%s)", w.ID, w.Name))
	}
	return assigned
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []string, filterType string) []string {
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		info, err := labctl.GetPortInfo(port)
		if err != nil {
			continue
		}

		name := strings.ToLower(info.Name)
		switch strings.ToLower(filterType) {
		case "usb":
			if strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, port)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, port)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, port)
			}
		}
	}
	return filtered
}

// renderTable renders ports with their type and rig assignment
func renderTable(ports []string, assigned map[string]string) {
	fmt.Printf("Found %d serial port(s):\n\n", len(ports))

	portWidth := 15
	typeWidth := 16
	descWidth := 24

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %s",
		portWidth, "Port",
		typeWidth, "Type",
		descWidth, "Product",
		"Rig device")
	fmt.Println(headerStyle.Render(header))

	for _, port := range ports {
		info, err := labctl.GetPortInfo(port)
		if err != nil {
			row := fmt.Sprintf("%-*s %-*s %-*s",
				portWidth, port,
				typeWidth, "Unknown",
				descWidth, fmt.Sprintf("Error: %v", err))
			fmt.Println(cellStyle.Render(row))
			continue
		}

		product := info.Product
		if product == "" {
			product = info.Description
		}
		device := faintStyle.Render("-")
		if d, ok := assigned[info.Path]; ok {
			device = successStyle.Render(d)
		}
		row := fmt.Sprintf("%-*s %-*s %-*s %s",
			portWidth, info.Name,
			typeWidth, getPortType(info.Name),
			descWidth, product,
			device)
		fmt.Println(cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(ports []string) {
	for _, port := range ports {
		fmt.Println(port)
	}
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
